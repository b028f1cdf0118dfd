package feed

import (
	"context"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zot/ezbridge/internal/hostabi"
	"github.com/zot/ezbridge/internal/playerdb"
)

const steveUUID = "3f0c7a2e-8b1d-4c55-9a1e-6d2b7f3c9e01"

func newApplier(t *testing.T) (*Applier, *playerdb.Registry, *playerdb.PeerBook) {
	t.Helper()
	db := playerdb.New(playerdb.NewMemoryStore(), zap.NewNop())
	peers := playerdb.NewPeerBook()
	layout, err := hostabi.LayoutFor(hostabi.DefaultVersion)
	require.NoError(t, err)
	return NewApplier(db, peers, layout, zap.NewNop(), 0), db, peers
}

func TestApplyJoinAndLeave(t *testing.T) {
	a, db, peers := newApplier(t)

	var joined, left []string
	db.AddListener(playerdb.SignalJoined, func(e playerdb.PlayerEntry) { joined = append(joined, e.Name) })
	db.AddListener(playerdb.SignalLeft, func(e playerdb.PlayerEntry) { left = append(left, e.Name) })

	require.NoError(t, a.Apply(Event{
		Event:   EventJoin,
		XUID:    "2535416409485371",
		UUID:    steveUUID,
		Name:    "Steve",
		Address: "192.0.2.7:19132",
		GUID:    77,
	}))

	e, ok := db.Find(2535416409485371)
	require.True(t, ok)
	assert.Equal(t, "Steve", e.Name)
	assert.Equal(t, steveUUID, e.UUID.String())
	assert.Equal(t, uint64(77), e.NetID.GUID)
	addr, ok := peers.SystemAddress(77)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.7:19132"), addr)

	require.NoError(t, a.Apply(Event{Event: "LEAVE", XUID: "2535416409485371"}))
	_, ok = db.Find(2535416409485371)
	assert.False(t, ok)
	_, ok = peers.SystemAddress(77)
	assert.False(t, ok)

	assert.Equal(t, []string{"Steve"}, joined)
	assert.Equal(t, []string{"Steve"}, left)
}

func TestApplyAssignsGUID(t *testing.T) {
	a, db, _ := newApplier(t)

	require.NoError(t, a.Apply(Event{Event: EventJoin, XUID: "1", UUID: steveUUID, Name: "a"}))
	require.NoError(t, a.Apply(Event{Event: EventJoin, XUID: "2", UUID: steveUUID, Name: "b"}))

	first, _ := db.Find(1)
	second, _ := db.Find(2)
	assert.NotZero(t, first.NetID.GUID)
	assert.NotEqual(t, first.NetID.GUID, second.NetID.GUID)
}

func TestRejoinDropsPreviousPeer(t *testing.T) {
	a, db, peers := newApplier(t)
	join := func(guid uint64, address string) {
		t.Helper()
		require.NoError(t, a.Apply(Event{Event: EventJoin, XUID: "3", UUID: steveUUID, Name: "Steve", Address: address, GUID: guid}))
	}

	join(30, "192.0.2.7:19132")
	join(31, "192.0.2.8:19133")

	_, ok := peers.SystemAddress(30)
	assert.False(t, ok, "the replaced connection is forgotten")
	addr, ok := peers.SystemAddress(31)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.8:19133"), addr)
	e, _ := db.Find(3)
	assert.Equal(t, uint64(31), e.NetID.GUID)

	join(31, "192.0.2.9:19134")
	addr, ok = peers.SystemAddress(31)
	require.True(t, ok, "a rejoin on the same connection keeps its peer")
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.9:19134"), addr)
	assert.Len(t, db.GetData(), 1)
}

func TestApplyRejects(t *testing.T) {
	a, _, _ := newApplier(t)

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"unknown event", Event{Event: "teleport", XUID: "1"}, "unknown event"},
		{"bad xuid", Event{Event: EventJoin, XUID: "-4"}, "xuid"},
		{"missing name", Event{Event: EventJoin, XUID: "1", UUID: steveUUID}, "missing name"},
		{"bad uuid", Event{Event: EventJoin, XUID: "1", UUID: "nope", Name: "a"}, "uuid"},
		{"bad address", Event{Event: EventJoin, XUID: "1", UUID: steveUUID, Name: "a", Address: "nowhere"}, "address"},
		{"leave offline player", Event{Event: EventLeave, XUID: "1"}, "not online"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, a.Apply(tt.ev), tt.want)
		})
	}
	applied, rejected := a.Stats()
	assert.Zero(t, applied)
	assert.Equal(t, int64(len(tests)), rejected)
}

func TestDecodeAcceptsNumericXUID(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"leave","xuid":2535416409485371}`))
	require.NoError(t, err)
	assert.Equal(t, "2535416409485371", ev.XUID.String())

	_, err = Decode([]byte(`{"event":`))
	assert.Error(t, err)
}

func TestReadLines(t *testing.T) {
	a, db, _ := newApplier(t)

	input := strings.Join([]string{
		`# fixture`,
		`{"event":"join","xuid":"1","uuid":"` + steveUUID + `","name":"Steve"}`,
		``,
		`not json`,
		`{"event":"join","xuid":"2","uuid":"` + steveUUID + `","name":"Alex"}`,
		`{"event":"leave","xuid":"1"}`,
	}, "\n")
	require.NoError(t, a.ReadLines(context.Background(), strings.NewReader(input)))

	names := []string{}
	for _, e := range db.GetData() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Alex"}, names)
	applied, rejected := a.Stats()
	assert.Equal(t, int64(3), applied)
	assert.Equal(t, int64(1), rejected)
}

func TestReadLinesStopsOnCancel(t *testing.T) {
	a, db, _ := newApplier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.ReadLines(ctx, strings.NewReader(`{"event":"join","xuid":"1","uuid":"`+steveUUID+`","name":"a"}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, db.GetData())
}

func TestWebSocketFeed(t *testing.T) {
	a, db, _ := newApplier(t)
	srv := httptest.NewServer(a)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"join","xuid":"5","uuid":"`+steveUUID+`","name":"Steve"}`)))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.True(t, reply.OK)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"leave","xuid":"6"}`)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "not online")

	_, ok := db.Find(5)
	assert.True(t, ok)
}
