package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// subProtocol is the application sub-protocol offered during the
	// websocket handshake.
	subProtocol = "lavalink"

	handshakeTimeout = 10 * time.Second
	writeControlWait = time.Second

	// outboundBuffer sizes the multi-producer/single-consumer command
	// queue between callers and the send loop.
	outboundBuffer = 16
)

// NodeConfig holds the immutable settings for one remote audio node.
type NodeConfig struct {
	// HTTPHost is the REST base URL, e.g. "http://localhost:2333".
	HTTPHost string
	// WebSocketHost is the dial address, e.g. "ws://localhost:8060".
	WebSocketHost string
	// UserID is the chat-platform user id of this client.
	UserID string
	// Password is the shared secret presented in the Authorization header.
	Password string
	// NumShards is the chat gateway shard count.
	NumShards int
}

// frame is one queued websocket message.
type frame struct {
	messageType int
	data        []byte
}

// Node is one live websocket connection to a remote audio node. Its send
// loop is the only writer to the socket; every other code path enqueues
// frames through SendText/SendBinary.
type Node struct {
	// WebSocketHost is the configured dial address, kept for diagnostics.
	WebSocketHost string

	id       string
	conn     *websocket.Conn
	outbound chan frame
	players  *AudioPlayerManager
	gateway  Gateway
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	closeOnce sync.Once

	statsMu sync.RWMutex
	stats   *RemoteStats
}

// Connect dials the node, performs the websocket handshake and starts the
// send and receive loops. There is no retry here; retry policy belongs to
// the caller. The registry is shared across nodes so inbound events can be
// routed to sessions created through any of them.
func Connect(cfg NodeConfig, players *AudioPlayerManager, gateway Gateway) (*Node, error) {
	header := http.Header{}
	header.Set("Authorization", cfg.Password)
	header.Set("Num-Shards", strconv.Itoa(cfg.NumShards))
	header.Set("User-Id", cfg.UserID)

	dialer := websocket.Dialer{
		Subprotocols:     []string{subProtocol},
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.Dial(cfg.WebSocketHost, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.WebSocketHost, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		WebSocketHost: cfg.WebSocketHost,
		id:            uuid.NewString(),
		conn:          conn,
		outbound:      make(chan frame, outboundBuffer),
		players:       players,
		gateway:       gateway,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	n.log = slog.With("node", n.id, "host", cfg.WebSocketHost)

	// Control frames must not be answered from the reading goroutine, or
	// the send loop would no longer be the sole writer. Both handlers only
	// enqueue; the send loop does the writing.
	conn.SetPingHandler(func(appData string) error {
		return n.enqueue(frame{websocket.PongMessage, []byte(appData)})
	})
	conn.SetCloseHandler(func(code int, text string) error {
		// The mirrored close frame is produced by the receive loop once
		// ReadMessage surfaces the CloseError.
		return nil
	})

	n.wg.Add(2)
	go n.sendLoop()
	go n.recvLoop()
	go func() {
		n.wg.Wait()
		n.cancel()
		close(n.done)
	}()

	n.log.Info("connected to audio node")
	return n, nil
}

// ID returns the node's instance id, used for log correlation.
func (n *Node) ID() string {
	return n.id
}

// Done is closed once both loops have exited, whether through Close or a
// transport failure. A finished node should be removed from its pool.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Stats returns the most recent telemetry snapshot, if one has arrived.
func (n *Node) Stats() (RemoteStats, bool) {
	n.statsMu.RLock()
	defer n.statsMu.RUnlock()
	if n.stats == nil {
		return RemoteStats{}, false
	}
	return *n.stats, true
}

func (n *Node) setStats(stats RemoteStats) {
	n.statsMu.Lock()
	n.stats = &stats
	n.statsMu.Unlock()
}

func (n *Node) enqueue(f frame) error {
	select {
	case n.outbound <- f:
		return nil
	case <-n.ctx.Done():
		return ErrNodeClosed
	}
}

// SendText enqueues a text frame for the send loop.
func (n *Node) SendText(data []byte) error {
	return n.enqueue(frame{websocket.TextMessage, data})
}

// SendBinary enqueues a binary frame for the send loop.
func (n *Node) SendBinary(data []byte) error {
	return n.enqueue(frame{websocket.BinaryMessage, data})
}

var _ Sender = (*Node)(nil)

// Close asks both loops to shut down and blocks until they have. It is
// safe to call more than once and on a node whose connection already
// failed.
func (n *Node) Close() {
	n.closeOnce.Do(func() {
		n.log.Info("closing node connection")
		closeFrame := frame{
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		}
		// Non-blocking: if the send loop is already gone the context
		// cancellation below unblocks everything.
		select {
		case n.outbound <- closeFrame:
		default:
		}
		n.cancel()
		n.wg.Wait()
	})
}

// sendLoop drains the outbound queue onto the socket. It is the sole
// writer. A close-type frame is forwarded and terminates the loop; a write
// error triggers a best-effort close frame and termination.
func (n *Node) sendLoop() {
	defer n.wg.Done()
	defer n.conn.Close()

	for {
		select {
		case f := <-n.outbound:
			switch f.messageType {
			case websocket.CloseMessage:
				_ = n.conn.WriteControl(websocket.CloseMessage, f.data, time.Now().Add(writeControlWait))
				return
			case websocket.PongMessage:
				if err := n.conn.WriteControl(websocket.PongMessage, f.data, time.Now().Add(writeControlWait)); err != nil {
					n.log.Error("send loop: pong failed", "error", err)
					n.writeClose()
					return
				}
			default:
				if err := n.conn.WriteMessage(f.messageType, f.data); err != nil {
					n.log.Error("send loop: write failed", "error", err)
					n.writeClose()
					return
				}
			}
		case <-n.ctx.Done():
			n.writeClose()
			return
		}
	}
}

func (n *Node) writeClose() {
	data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = n.conn.WriteControl(websocket.CloseMessage, data, time.Now().Add(writeControlWait))
}

// recvLoop reads inbound frames and dispatches them. Decode and dispatch
// errors are local to one message; only transport errors end the loop, and
// they do so by also waking the send loop with a close frame.
func (n *Node) recvLoop() {
	defer n.wg.Done()

	for {
		messageType, data, err := n.conn.ReadMessage()
		if err != nil {
			if n.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				n.log.Error("receive loop: read failed", "error", err)
			}
			closeFrame := frame{
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			}
			_ = n.enqueue(closeFrame)
			return
		}

		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if err := n.dispatch(data); err != nil {
				n.log.Warn("receive loop: discarding frame", "error", err)
			}
		default:
			n.log.Debug("receive loop: unexpected frame type", "type", messageType)
		}
	}
}

// dispatch decodes one inbound frame and routes it by opcode. Returned
// errors are logged by the receive loop; they never end it.
func (n *Node) dispatch(data []byte) error {
	env, err := DecodeFrame(data)
	if err != nil {
		return err
	}

	switch env.Op {
	case OpSendWS:
		return n.handleSendWS(env)
	case OpValidationReq:
		return n.handleValidationReq(env)
	case OpIsConnectedReq:
		return n.handleIsConnectedReq(env)
	case OpPlayerUpdate:
		return n.handlePlayerUpdate(env)
	case OpStats:
		return n.handleStats(env)
	case OpEvent:
		return n.handleEvent(env)
	case OpUnknown:
		return fmt.Errorf("unknown opcode in frame: %s", truncateForLog(data))
	default:
		// A client -> server opcode echoed at us; nothing to do with it.
		n.log.Warn("received client-bound opcode from server", "op", env.Op)
		return nil
	}
}

func (n *Node) handleSendWS(env Envelope) error {
	var p sendWSPayload
	if err := unmarshalPayload(env, &p); err != nil {
		return err
	}
	if err := n.gateway.SendToShard(p.ShardID, p.Message); err != nil {
		n.log.Error("sendWS: gateway forward failed", "shardID", p.ShardID, "error", err)
	}
	return nil
}

func (n *Node) handleValidationReq(env Envelope) error {
	var p validationReqPayload
	if err := unmarshalPayload(env, &p); err != nil {
		return err
	}
	valid := n.gateway.CanAccess(p.GuildID, p.ChannelID)

	data, err := ValidationResponseMessage(p.GuildID, p.ChannelID, valid)
	if err != nil {
		return err
	}
	return n.SendText(data)
}

func (n *Node) handleIsConnectedReq(env Envelope) error {
	var p isConnectedReqPayload
	if err := unmarshalPayload(env, &p); err != nil {
		return err
	}
	data, err := IsConnectedResponseMessage(p.ShardID, n.gateway.HasShard(p.ShardID))
	if err != nil {
		return err
	}
	return n.SendText(data)
}

func (n *Node) handlePlayerUpdate(env Envelope) error {
	var p playerUpdatePayload
	if err := unmarshalPayload(env, &p); err != nil {
		return err
	}
	guildID, err := strconv.ParseUint(p.GuildID, 10, 64)
	if err != nil {
		return fmt.Errorf("playerUpdate: bad guildId %q: %w", p.GuildID, err)
	}

	player, ok := n.players.GetPlayer(guildID)
	if !ok {
		n.log.Warn("playerUpdate for guild without player", "guildID", guildID)
		return nil
	}
	player.setState(p.State.Time, p.State.Position)
	return nil
}

func (n *Node) handleStats(env Envelope) error {
	var stats RemoteStats
	if err := unmarshalPayload(env, &stats); err != nil {
		return err
	}
	n.setStats(stats)
	return nil
}

func (n *Node) handleEvent(env Envelope) error {
	var p eventPayload
	if err := unmarshalPayload(env, &p); err != nil {
		return err
	}
	guildID, err := strconv.ParseUint(p.GuildID, 10, 64)
	if err != nil {
		return fmt.Errorf("event: bad guildId %q: %w", p.GuildID, err)
	}

	player, ok := n.players.GetPlayer(guildID)
	if !ok {
		n.log.Warn("event for guild without player", "guildID", guildID, "type", p.Type)
		return nil
	}

	switch p.Type {
	case TrackEndEvent:
		player.serverTrackEnd(p.Track, p.Reason)
	case TrackExceptionEvent:
		player.listener.OnTrackException(player, p.Track, p.Error)
	case TrackStuckEvent:
		player.listener.OnTrackStuck(player, p.Track, p.ThresholdMs)
	default:
		n.log.Warn("unexpected event type", "type", p.Type, "guildID", guildID)
	}
	return nil
}

func unmarshalPayload(env Envelope, v any) error {
	if err := json.Unmarshal(env.Raw, v); err != nil {
		return fmt.Errorf("%s payload: %w", env.Op, err)
	}
	return nil
}

func truncateForLog(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
