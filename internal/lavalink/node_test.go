package lavalink_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soundlink/soundlink/internal/lavalink"
)

type shardSend struct {
	shardID uint64
	message string
}

// fakeGateway is a canned chat gateway for node tests.
type fakeGateway struct {
	mu     sync.Mutex
	sends  []shardSend
	shards map[uint64]bool
	grants map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		shards: make(map[uint64]bool),
		grants: make(map[string]bool),
	}
}

func (g *fakeGateway) SendToShard(shardID uint64, message string) error {
	g.mu.Lock()
	g.sends = append(g.sends, shardSend{shardID, message})
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) HasShard(shardID uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shards[shardID]
}

func (g *fakeGateway) CanAccess(guildID, channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.grants[guildID+"/"+channelID]
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

// nodeServer is an in-process stand-in for a remote audio node.
type nodeServer struct {
	srv     *httptest.Server
	conns   chan *websocket.Conn
	headers chan http.Header
}

func startNodeServer(t *testing.T) *nodeServer {
	t.Helper()
	ns := &nodeServer{
		conns:   make(chan *websocket.Conn, 1),
		headers: make(chan http.Header, 1),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{"lavalink"}}
	ns.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ns.headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ns.conns <- conn
	}))
	t.Cleanup(ns.srv.Close)
	return ns
}

func (ns *nodeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ns.srv.URL, "http")
}

func (ns *nodeServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ns.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection arrived")
		return nil
	}
}

func connectNode(t *testing.T, ns *nodeServer, players *lavalink.AudioPlayerManager, gateway lavalink.Gateway) (*lavalink.Node, *websocket.Conn) {
	t.Helper()
	node, err := lavalink.Connect(lavalink.NodeConfig{
		WebSocketHost: ns.wsURL(),
		UserID:        "123",
		Password:      "hunter2",
		NumShards:     2,
	}, players, gateway)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(node.Close)
	return node, ns.accept(t)
}

func writeFrame(t *testing.T, conn *websocket.Conn, body string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return decodeJSON(t, data)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// awaitStats sends a stats frame and waits for it to land. Because frames
// are dispatched in order, everything written before it has been processed
// once it shows up.
func awaitStats(t *testing.T, node *lavalink.Node, conn *websocket.Conn, playing int) {
	t.Helper()
	frame, err := json.Marshal(map[string]any{
		"op":             "stats",
		"players":        playing,
		"playingPlayers": playing,
		"uptime":         1,
		"memory":         map[string]int{"free": 1, "used": 1, "allocated": 1, "reservable": 1},
		"cpu":            map[string]any{"cores": 1, "systemLoad": 0, "lavalinkLoad": 0},
	})
	if err != nil {
		t.Fatalf("marshal stats: %v", err)
	}
	writeFrame(t, conn, string(frame))
	waitFor(t, "stats to arrive", func() bool {
		stats, ok := node.Stats()
		return ok && stats.PlayingPlayers == playing
	})
}

func TestConnectHandshake(t *testing.T) {
	ns := startNodeServer(t)
	node, conn := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), newFakeGateway())

	header := <-ns.headers
	if got := header.Get("Authorization"); got != "hunter2" {
		t.Errorf("Authorization = %q", got)
	}
	if got := header.Get("Num-Shards"); got != "2" {
		t.Errorf("Num-Shards = %q", got)
	}
	if got := header.Get("User-Id"); got != "123" {
		t.Errorf("User-Id = %q", got)
	}
	if got := header.Get("Sec-WebSocket-Protocol"); !strings.Contains(got, "lavalink") {
		t.Errorf("Sec-WebSocket-Protocol = %q", got)
	}

	node.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("server read after Close = %v, want normal closure", err)
	}
}

func TestMalformedFramesDoNotKillTheLoop(t *testing.T) {
	ns := startNodeServer(t)
	node, conn := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), newFakeGateway())

	writeFrame(t, conn, "pure garbage")
	writeFrame(t, conn, `{"guildId": "42"}`)
	writeFrame(t, conn, `{"op": "somethingNew"}`)

	// The frames above were discarded one by one; the loop still delivers.
	awaitStats(t, node, conn, 7)
}

func TestPlayerUpdateRoutesToPlayer(t *testing.T) {
	ns := startNodeServer(t)
	players := lavalink.NewAudioPlayerManager(nil)
	node, conn := connectNode(t, ns, players, newFakeGateway())

	player, err := players.CreatePlayer(node, 42)
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}

	writeFrame(t, conn, `{"op": "playerUpdate", "guildId": "42", "state": {"time": 1757000000000, "position": 60000}}`)
	waitFor(t, "player update", func() bool {
		return player.Position() == 60000 && player.Time() == 1757000000000
	})
}

func TestTrackEndEvent(t *testing.T) {
	ns := startNodeServer(t)
	listener := &recordListener{}
	players := lavalink.NewAudioPlayerManager(listener)
	node, conn := connectNode(t, ns, players, newFakeGateway())

	player, err := players.CreatePlayer(node, 42)
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := player.Play("abc"); err != nil {
		t.Fatalf("Play: %v", err)
	}

	writeFrame(t, conn, `{"op": "event", "type": "TrackEndEvent", "guildId": "42", "track": "abc", "reason": "FINISHED"}`)
	waitFor(t, "track end", func() bool {
		listener.mu.Lock()
		defer listener.mu.Unlock()
		return len(listener.ends) == 1
	})
	if listener.ends[0] != (trackEnd{"abc", "FINISHED"}) {
		t.Errorf("end = %+v", listener.ends[0])
	}
	if _, ok := player.Track(); ok {
		t.Error("track survived TrackEndEvent")
	}

	// An event for a guild without a session is dropped without a callback
	// and without ending the loop.
	writeFrame(t, conn, `{"op": "event", "type": "TrackEndEvent", "guildId": "99", "track": "zzz", "reason": "FINISHED"}`)
	awaitStats(t, node, conn, 3)
	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.ends) != 1 {
		t.Errorf("ends = %v, want just the first", listener.ends)
	}
}

func TestTrackExceptionAndStuckEvents(t *testing.T) {
	ns := startNodeServer(t)
	listener := &recordListener{}
	players := lavalink.NewAudioPlayerManager(listener)
	node, conn := connectNode(t, ns, players, newFakeGateway())

	if _, err := players.CreatePlayer(node, 42); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}

	writeFrame(t, conn, `{"op": "event", "type": "TrackExceptionEvent", "guildId": "42", "track": "abc", "error": "decoder blew up"}`)
	writeFrame(t, conn, `{"op": "event", "type": "TrackStuckEvent", "guildId": "42", "track": "abc", "thresholdMs": 10000}`)

	waitFor(t, "exception and stuck callbacks", func() bool {
		listener.mu.Lock()
		defer listener.mu.Unlock()
		return len(listener.exceptions) == 1 && len(listener.stucks) == 1
	})
	if listener.exceptions[0] != "decoder blew up" {
		t.Errorf("exception = %q", listener.exceptions[0])
	}
	if listener.stucks[0] != 10000 {
		t.Errorf("threshold = %d", listener.stucks[0])
	}
}

func TestValidationRequest(t *testing.T) {
	ns := startNodeServer(t)
	gateway := newFakeGateway()
	gateway.grants["42/7"] = true
	_, conn := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), gateway)

	writeFrame(t, conn, `{"op": "validationReq", "guildId": "42", "channelId": "7"}`)
	got := readFrame(t, conn)
	if got["op"] != "validationRes" || got["guildId"] != "42" || got["channelId"] != "7" || got["valid"] != true {
		t.Errorf("validationRes = %v", got)
	}

	// Guild-only request for a guild we cannot see: invalid, and the
	// response carries no channelId at all.
	writeFrame(t, conn, `{"op": "validationReq", "guildId": "500"}`)
	got = readFrame(t, conn)
	if got["valid"] != false {
		t.Errorf("valid = %v, want false", got["valid"])
	}
	if _, present := got["channelId"]; present {
		t.Errorf("channelId should be absent: %v", got)
	}
}

func TestIsConnectedRequest(t *testing.T) {
	ns := startNodeServer(t)
	gateway := newFakeGateway()
	gateway.shards[1] = true
	_, conn := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), gateway)

	writeFrame(t, conn, `{"op": "isConnectedReq", "shardId": 1}`)
	got := readFrame(t, conn)
	if got["op"] != "isConnectedRes" || got["shardId"] != float64(1) || got["connected"] != true {
		t.Errorf("isConnectedRes = %v", got)
	}

	writeFrame(t, conn, `{"op": "isConnectedReq", "shardId": 9}`)
	got = readFrame(t, conn)
	if got["connected"] != false {
		t.Errorf("connected = %v, want false", got["connected"])
	}
}

func TestSendWSForwardsToGateway(t *testing.T) {
	ns := startNodeServer(t)
	gateway := newFakeGateway()
	_, conn := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), gateway)

	writeFrame(t, conn, `{"op": "sendWS", "shardId": 0, "message": "{\"op\":4,\"d\":{\"guild_id\":\"42\",\"channel_id\":\"7\"}}"}`)
	waitFor(t, "gateway forward", func() bool { return gateway.sentCount() == 1 })

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.sends[0].shardID != 0 {
		t.Errorf("shard = %d, want 0", gateway.sends[0].shardID)
	}
	if !strings.Contains(gateway.sends[0].message, `"guild_id":"42"`) {
		t.Errorf("message = %q", gateway.sends[0].message)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ns := startNodeServer(t)
	node, _ := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), newFakeGateway())

	node.Close()
	node.Close()

	select {
	case <-node.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed")
	}

	if err := node.SendText([]byte(`{}`)); err != lavalink.ErrNodeClosed {
		t.Errorf("SendText after Close = %v, want ErrNodeClosed", err)
	}
}

func TestServerInitiatedClose(t *testing.T) {
	ns := startNodeServer(t)
	node, conn := connectNode(t, ns, lavalink.NewAudioPlayerManager(nil), newFakeGateway())

	data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "going away")
	if err := conn.WriteControl(websocket.CloseMessage, data, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("write close: %v", err)
	}

	select {
	case <-node.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("node loops did not finish after server close")
	}
}
