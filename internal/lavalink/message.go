package lavalink

import (
	"encoding/json"
	"fmt"
)

// Outbound messages are flat JSON objects tagged by an "op" field. The
// constructors below return the marshalled frame body; whether it travels
// as a text or binary websocket frame is up to the caller.

type connectMessage struct {
	Op        Opcode `json:"op"`
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
}

type disconnectMessage struct {
	Op      Opcode `json:"op"`
	GuildID string `json:"guildId"`
}

type playMessage struct {
	Op        Opcode `json:"op"`
	GuildID   string `json:"guildId"`
	Track     string `json:"track"`
	StartTime uint64 `json:"startTime,omitempty"`
	EndTime   uint64 `json:"endTime,omitempty"`
}

type stopMessage struct {
	Op      Opcode `json:"op"`
	GuildID string `json:"guildId"`
}

type pauseMessage struct {
	Op      Opcode `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

type seekMessage struct {
	Op       Opcode `json:"op"`
	GuildID  string `json:"guildId"`
	Position int64  `json:"position"`
}

type volumeMessage struct {
	Op      Opcode `json:"op"`
	GuildID string `json:"guildId"`
	Volume  int    `json:"volume"`
}

// VoiceServerEvent carries the voice handshake material intercepted from
// the chat gateway. Field names follow the gateway's own payload, hence
// the snake_case guild_id.
type VoiceServerEvent struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

type voiceUpdateMessage struct {
	Op        Opcode           `json:"op"`
	SessionID string           `json:"sessionId"`
	GuildID   string           `json:"guildId"`
	Event     VoiceServerEvent `json:"event"`
}

type validationResMessage struct {
	Op        Opcode `json:"op"`
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId,omitempty"`
	Valid     bool   `json:"valid"`
}

type isConnectedResMessage struct {
	Op        Opcode `json:"op"`
	ShardID   uint64 `json:"shardId"`
	Connected bool   `json:"connected"`
}

// ConnectMessage asks the node to queue a voice connection.
func ConnectMessage(guildID, channelID string) ([]byte, error) {
	return json.Marshal(connectMessage{Op: OpConnect, GuildID: guildID, ChannelID: channelID})
}

// DisconnectMessage asks the node to close a voice connection.
func DisconnectMessage(guildID string) ([]byte, error) {
	return json.Marshal(disconnectMessage{Op: OpDisconnect, GuildID: guildID})
}

// PlayMessage starts playback of a track. startTime and endTime are
// millisecond offsets; zero means "not set" and is omitted from the wire.
func PlayMessage(guildID, track string, startTime, endTime uint64) ([]byte, error) {
	return json.Marshal(playMessage{
		Op:        OpPlay,
		GuildID:   guildID,
		Track:     track,
		StartTime: startTime,
		EndTime:   endTime,
	})
}

// StopMessage stops the guild's player.
func StopMessage(guildID string) ([]byte, error) {
	return json.Marshal(stopMessage{Op: OpStop, GuildID: guildID})
}

// PauseMessage sets or clears the player's paused state.
func PauseMessage(guildID string, pause bool) ([]byte, error) {
	return json.Marshal(pauseMessage{Op: OpPause, GuildID: guildID, Pause: pause})
}

// SeekMessage moves the player to a track position in milliseconds.
func SeekMessage(guildID string, position int64) ([]byte, error) {
	return json.Marshal(seekMessage{Op: OpSeek, GuildID: guildID, Position: position})
}

// VolumeMessage sets the player volume.
func VolumeMessage(guildID string, volume int) ([]byte, error) {
	return json.Marshal(volumeMessage{Op: OpVolume, GuildID: guildID, Volume: volume})
}

// VoiceUpdateMessage forwards an intercepted voice server update so the
// node can complete the voice handshake.
func VoiceUpdateMessage(sessionID, guildID string, event VoiceServerEvent) ([]byte, error) {
	return json.Marshal(voiceUpdateMessage{
		Op:        OpVoiceUpdate,
		SessionID: sessionID,
		GuildID:   guildID,
		Event:     event,
	})
}

// ValidationResponseMessage answers a validationReq. channelID is omitted
// from the wire when the request named none.
func ValidationResponseMessage(guildID, channelID string, valid bool) ([]byte, error) {
	return json.Marshal(validationResMessage{
		Op:        OpValidationRes,
		GuildID:   guildID,
		ChannelID: channelID,
		Valid:     valid,
	})
}

// IsConnectedResponseMessage answers an isConnectedReq.
func IsConnectedResponseMessage(shardID uint64, connected bool) ([]byte, error) {
	return json.Marshal(isConnectedResMessage{Op: OpIsConnectedRes, ShardID: shardID, Connected: connected})
}

// Envelope is a decoded inbound frame: the recognized opcode plus the raw
// body for field-by-field interpretation.
type Envelope struct {
	Op  Opcode
	Raw json.RawMessage
}

// DecodeFrame parses an inbound frame body. A frame that is not JSON or
// carries no "op" field yields an error; the caller discards the frame and
// keeps its loop alive. Unrecognized tags decode to OpUnknown.
func DecodeFrame(data []byte) (Envelope, error) {
	var head struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if head.Op == "" {
		return Envelope{}, ErrMissingOp
	}
	return Envelope{Op: ParseOpcode(head.Op), Raw: data}, nil
}

// Inbound payload shapes, one per server -> client opcode.

type sendWSPayload struct {
	ShardID uint64 `json:"shardId"`
	Message string `json:"message"`
}

type validationReqPayload struct {
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
}

type isConnectedReqPayload struct {
	ShardID uint64 `json:"shardId"`
}

type playerUpdatePayload struct {
	GuildID string `json:"guildId"`
	State   struct {
		Time     int64 `json:"time"`
		Position int64 `json:"position"`
	} `json:"state"`
}

// Session lifecycle event types carried by the event opcode.
const (
	TrackEndEvent       = "TrackEndEvent"
	TrackExceptionEvent = "TrackExceptionEvent"
	TrackStuckEvent     = "TrackStuckEvent"
)

type eventPayload struct {
	GuildID     string `json:"guildId"`
	Track       string `json:"track"`
	Type        string `json:"type"`
	Reason      string `json:"reason"`
	Error       string `json:"error"`
	ThresholdMs int64  `json:"thresholdMs"`
}
