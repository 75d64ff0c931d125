package handler

import (
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/soundlink/soundlink/internal/lavalink"
)

// SessionGateway adapts one or more discordgo sessions (one per shard) to
// the lavalink.Gateway collaborator interface.
type SessionGateway struct {
	sessions map[uint64]*discordgo.Session
}

func NewSessionGateway(sessions ...*discordgo.Session) *SessionGateway {
	m := make(map[uint64]*discordgo.Session, len(sessions))
	for _, s := range sessions {
		m[uint64(s.ShardID)] = s
	}
	return &SessionGateway{sessions: m}
}

var _ lavalink.Gateway = (*SessionGateway)(nil)

// GatewayVoiceState is the gateway op 4 payload an audio node asks us to
// relay so Discord routes voice traffic to it.
type GatewayVoiceState struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	SelfMute  bool   `json:"self_mute"`
	SelfDeaf  bool   `json:"self_deaf"`
}

// ParseShardMessage extracts the voice state update from a raw gateway
// payload. Audio nodes only ever relay op 4; anything else is rejected.
func ParseShardMessage(message string) (GatewayVoiceState, error) {
	var payload struct {
		Op int             `json:"op"`
		D  json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal([]byte(message), &payload); err != nil {
		return GatewayVoiceState{}, fmt.Errorf("failed to parse gateway payload: %w", err)
	}
	if payload.Op != 4 {
		return GatewayVoiceState{}, fmt.Errorf("unsupported gateway op %d", payload.Op)
	}

	var vsu GatewayVoiceState
	if err := json.Unmarshal(payload.D, &vsu); err != nil {
		return GatewayVoiceState{}, fmt.Errorf("failed to parse voice state update: %w", err)
	}
	if vsu.GuildID == "" {
		return GatewayVoiceState{}, fmt.Errorf("voice state update without guild_id")
	}
	return vsu, nil
}

// SendToShard relays a node-requested gateway payload through the shard's
// own connection, using the library's voice join plumbing rather than a
// raw socket write.
func (g *SessionGateway) SendToShard(shardID uint64, message string) error {
	s, ok := g.sessions[shardID]
	if !ok {
		return fmt.Errorf("no session for shard %d", shardID)
	}

	vsu, err := ParseShardMessage(message)
	if err != nil {
		return err
	}
	return s.ChannelVoiceJoinManual(vsu.GuildID, vsu.ChannelID, vsu.SelfMute, vsu.SelfDeaf)
}

// HasShard reports whether the shard exists and its gateway connection is
// ready.
func (g *SessionGateway) HasShard(shardID uint64) bool {
	s, ok := g.sessions[shardID]
	return ok && s.DataReady
}

// CanAccess reports whether any shard's state cache knows the guild and,
// when given, the channel.
func (g *SessionGateway) CanAccess(guildID, channelID string) bool {
	for _, s := range g.sessions {
		if _, err := s.State.Guild(guildID); err != nil {
			continue
		}
		if channelID == "" {
			return true
		}
		if _, err := s.State.Channel(channelID); err == nil {
			return true
		}
	}
	return false
}
