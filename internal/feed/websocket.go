package feed

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local development host
	},
}

// Reply is written back for every websocket message.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ServeHTTP upgrades the request to a websocket and applies every text message as an
// event, answering each with a Reply.
func (a *Applier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log(0, "feed: websocket upgrade failed: %v", err)
		return
	}
	a.Log(1, "feed: websocket connected from %s", r.RemoteAddr)
	go a.readPump(conn)
}

func (a *Applier) readPump(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.Log(0, "feed: websocket error: %v", err)
			}
			return
		}

		reply := Reply{OK: true}
		ev, err := Decode(message)
		if err == nil {
			err = a.Apply(ev)
		} else {
			a.rejected.Add(1)
		}
		if err != nil {
			a.Log(1, "feed: websocket event rejected: %v", err)
			reply = Reply{Error: err.Error()}
		}
		if err := conn.WriteJSON(reply); err != nil {
			a.Log(0, "feed: websocket write: %v", err)
			return
		}
	}
}
