package lavalink

import (
	"log/slog"
	"strconv"
	"sync"
)

// Volume bounds enforced on players. 100 is the node default.
const (
	MinVolume     = 1
	MaxVolume     = 150
	DefaultVolume = 100
)

// trackEndClientReason is the reason reported for a client-initiated stop.
// Server-confirmed ends carry the node's own reason string (FINISHED,
// STOPPED, ...), which keeps the two notification paths distinguishable.
const trackEndClientReason = "no reason"

// Sender delivers raw frames onto a node's outbound queue. *Node satisfies
// it; tests substitute their own.
type Sender interface {
	SendText(data []byte) error
	SendBinary(data []byte) error
}

// AudioPlayer is one playback session, bound to a guild and to the node it
// was created on. Commands are fire-and-forget: local state changes and
// listener callbacks only happen once the command has been accepted onto
// the node's outbound queue.
type AudioPlayer struct {
	sender   Sender
	guildID  uint64
	listener EventListener

	mu       sync.Mutex
	track    string
	time     int64
	position int64
	paused   bool
	volume   int
}

func newAudioPlayer(sender Sender, guildID uint64, listener EventListener) *AudioPlayer {
	return &AudioPlayer{
		sender:   sender,
		guildID:  guildID,
		listener: listener,
		volume:   DefaultVolume,
	}
}

// GuildID returns the guild this session belongs to.
func (p *AudioPlayer) GuildID() uint64 {
	return p.guildID
}

func (p *AudioPlayer) guildIDString() string {
	return strconv.FormatUint(p.guildID, 10)
}

// Track returns the currently loaded track token, if any.
func (p *AudioPlayer) Track() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track, p.track != ""
}

// Position returns the last known playback position in milliseconds.
func (p *AudioPlayer) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Time returns the node timestamp of the last player update.
func (p *AudioPlayer) Time() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

// Paused reports whether the session is paused.
func (p *AudioPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Volume returns the current volume.
func (p *AudioPlayer) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// sendCommand marshals nothing itself: it pushes an already-encoded command
// onto the bound node's queue as a binary frame, the outbound efficiency
// encoding for command traffic.
func (p *AudioPlayer) sendCommand(data []byte) error {
	return p.sender.SendBinary(data)
}

// Play starts playback of a track from the beginning.
func (p *AudioPlayer) Play(track string) error {
	return p.play(track, 0, 0)
}

// PlayRange starts playback of a track between two millisecond offsets.
// Zero means "not set".
func (p *AudioPlayer) PlayRange(track string, startTime, endTime uint64) error {
	return p.play(track, startTime, endTime)
}

func (p *AudioPlayer) play(track string, startTime, endTime uint64) error {
	data, err := PlayMessage(p.guildIDString(), track, startTime, endTime)
	if err != nil {
		return err
	}
	if err := p.sendCommand(data); err != nil {
		slog.Error("play: could not enqueue command", "guildID", p.guildID, "error", err)
		return err
	}

	p.mu.Lock()
	p.track = track
	p.mu.Unlock()

	p.listener.OnTrackStart(p, track)
	return nil
}

// Stop stops playback and clears the session's track, time and position.
// It is safe to call with nothing playing. The listener's track-end
// callback fires with the client-initiated reason; the node will usually
// confirm with its own TrackEndEvent carrying a server reason.
func (p *AudioPlayer) Stop() error {
	data, err := StopMessage(p.guildIDString())
	if err != nil {
		return err
	}
	if err := p.sendCommand(data); err != nil {
		slog.Error("stop: could not enqueue command", "guildID", p.guildID, "error", err)
		return err
	}

	p.mu.Lock()
	prev := p.track
	p.track = ""
	p.time = 0
	p.position = 0
	p.mu.Unlock()

	if prev == "" {
		prev = "no track in state"
	}
	p.listener.OnTrackEnd(p, prev, trackEndClientReason)
	return nil
}

// SetPaused pauses or resumes playback and fires the matching listener
// callback.
func (p *AudioPlayer) SetPaused(pause bool) error {
	data, err := PauseMessage(p.guildIDString(), pause)
	if err != nil {
		return err
	}
	if err := p.sendCommand(data); err != nil {
		slog.Error("pause: could not enqueue command", "guildID", p.guildID, "error", err)
		return err
	}

	p.mu.Lock()
	p.paused = pause
	p.mu.Unlock()

	if pause {
		p.listener.OnPlayerPause(p)
	} else {
		p.listener.OnPlayerResume(p)
	}
	return nil
}

// SetVolume sets the player volume. Callers are expected to validate user
// input first; the range check here keeps the [MinVolume, MaxVolume]
// invariant regardless.
func (p *AudioPlayer) SetVolume(volume int) error {
	if volume < MinVolume || volume > MaxVolume {
		return ErrVolumeOutOfRange
	}
	data, err := VolumeMessage(p.guildIDString(), volume)
	if err != nil {
		return err
	}
	if err := p.sendCommand(data); err != nil {
		slog.Error("volume: could not enqueue command", "guildID", p.guildID, "error", err)
		return err
	}

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// Seek is part of the protocol surface but has never been implemented by
// this client.
func (p *AudioPlayer) Seek(position int64) error {
	return ErrNotImplemented
}

// Connect asks the bound node to open the voice connection for this guild.
func (p *AudioPlayer) Connect(channelID string) error {
	data, err := ConnectMessage(p.guildIDString(), channelID)
	if err != nil {
		return err
	}
	return p.sender.SendText(data)
}

// Disconnect asks the bound node to close the guild's voice connection.
func (p *AudioPlayer) Disconnect() error {
	data, err := DisconnectMessage(p.guildIDString())
	if err != nil {
		return err
	}
	return p.sender.SendText(data)
}

// VoiceUpdate forwards intercepted voice handshake material to the node.
func (p *AudioPlayer) VoiceUpdate(sessionID, token, endpoint string) error {
	guildID := p.guildIDString()
	data, err := VoiceUpdateMessage(sessionID, guildID, VoiceServerEvent{
		Token:    token,
		GuildID:  guildID,
		Endpoint: endpoint,
	})
	if err != nil {
		return err
	}
	return p.sender.SendText(data)
}

// setState records the time/position pair from a playerUpdate message.
func (p *AudioPlayer) setState(time, position int64) {
	p.mu.Lock()
	p.time = time
	p.position = position
	p.mu.Unlock()
}

// serverTrackEnd applies a server-confirmed TrackEndEvent: state is cleared
// and the listener notified with the server's reason.
func (p *AudioPlayer) serverTrackEnd(track, reason string) {
	p.mu.Lock()
	p.track = ""
	p.time = 0
	p.position = 0
	p.mu.Unlock()

	p.listener.OnTrackEnd(p, track, reason)
}

// AudioPlayerManager is the registry of live sessions, shared by every
// node so a session created through one node is visible network-wide.
type AudioPlayerManager struct {
	mu       sync.RWMutex
	players  map[uint64]*AudioPlayer
	listener EventListener
}

// NewAudioPlayerManager creates an empty registry. A nil listener is
// replaced by NopListener.
func NewAudioPlayerManager(listener EventListener) *AudioPlayerManager {
	if listener == nil {
		listener = NopListener{}
	}
	return &AudioPlayerManager{
		players:  make(map[uint64]*AudioPlayer),
		listener: listener,
	}
}

// HasPlayer reports whether the guild has a live session.
func (m *AudioPlayerManager) HasPlayer(guildID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.players[guildID]
	return ok
}

// GetPlayer returns the guild's session, if any.
func (m *AudioPlayerManager) GetPlayer(guildID uint64) (*AudioPlayer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[guildID]
	return p, ok
}

// CreatePlayer constructs a session bound to the given sender and inserts
// it. The existence check and insert happen under one lock, so two
// concurrent creators for the same guild cannot both win; the loser gets a
// DuplicatePlayerError.
func (m *AudioPlayerManager) CreatePlayer(sender Sender, guildID uint64) (*AudioPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[guildID]; ok {
		return nil, &DuplicatePlayerError{GuildID: guildID}
	}

	p := newAudioPlayer(sender, guildID, m.listener)
	m.players[guildID] = p
	return p, nil
}

// RemovePlayer drops the guild's session from the registry, typically on
// call-leave. Removing an absent guild is a no-op.
func (m *AudioPlayerManager) RemovePlayer(guildID uint64) {
	m.mu.Lock()
	delete(m.players, guildID)
	m.mu.Unlock()
}
