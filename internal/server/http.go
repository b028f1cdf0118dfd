package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zot/ezbridge/internal/hostabi"
	"github.com/zot/ezbridge/internal/lua"
	"github.com/zot/ezbridge/internal/proto"
)

// PlayerView is the JSON form of an online player. xuid is a string so JavaScript
// clients keep all 64 bits.
type PlayerView struct {
	XUID    string `json:"xuid"`
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Online  bool   `json:"online"`
}

// ModuleView describes one registered native module.
type ModuleView struct {
	Name      string   `json:"name"`
	Functions []string `json:"functions"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	r.Get("/modules", s.handleModules)
	r.Get("/prototypes", s.handlePrototypes)
	if s.opts.Players != nil {
		r.Get("/players", s.handlePlayers)
		r.Get("/players/{xuid}", s.handlePlayer)
	}
	if s.opts.Feed != nil {
		r.Handle("/feed", s.opts.Feed)
	}
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}
	return r
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	online := s.opts.Players.GetData()
	views := make([]PlayerView, 0, len(online))
	for _, e := range online {
		views = append(views, PlayerView{
			XUID:    strconv.FormatUint(e.XUID, 10),
			UUID:    e.UUID.String(),
			Name:    e.Name,
			Address: s.address(e.NetID),
			Online:  true,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handlePlayer serves one player, falling back to the offline store.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	xuid, err := strconv.ParseUint(chi.URLParam(r, "xuid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "xuid must be a decimal 64-bit integer")
		return
	}
	if e, ok := s.opts.Players.Find(xuid); ok {
		writeJSON(w, http.StatusOK, PlayerView{
			XUID:    strconv.FormatUint(e.XUID, 10),
			UUID:    e.UUID.String(),
			Name:    e.Name,
			Address: s.address(e.NetID),
			Online:  true,
		})
		return
	}
	off, ok, err := s.opts.Players.FindOffline(xuid)
	if err != nil {
		s.Log(0, "HTTP: offline lookup %d: %v", xuid, err)
		writeError(w, http.StatusInternalServerError, "offline store unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown player")
		return
	}
	writeJSON(w, http.StatusOK, PlayerView{
		XUID: strconv.FormatUint(off.XUID, 10),
		UUID: off.UUID.String(),
		Name: off.Name,
	})
}

// address formats a connection the way scripts see it ("ip|port").
func (s *Server) address(netid hostabi.NetworkIdentifier) string {
	if s.opts.Peers == nil {
		return hostabi.UnassignedAddress
	}
	return netid.RealAddress(s.opts.Peers)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	mods := lua.Modules()
	views := make([]ModuleView, 0, len(mods))
	for _, m := range mods {
		views = append(views, ModuleView{Name: m.Name, Functions: m.FunctionNames()})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePrototypes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]string)
	for _, kind := range proto.Kinds() {
		p, err := proto.Get(kind)
		if err != nil {
			continue
		}
		out[string(kind)] = p.Names()
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
