package handler

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/soundlink/soundlink/internal/lavalink"
)

// VoiceForwarder watches the gateway's voice events and forwards the
// completed handshake material to the guild's audio node. Discord sends
// the pieces in two events: a voice state update carrying our session id,
// then a voice server update carrying token and endpoint.
type VoiceForwarder struct {
	mu         sync.Mutex
	sessionIDs map[string]string

	players *lavalink.AudioPlayerManager
}

func NewVoiceForwarder(players *lavalink.AudioPlayerManager) *VoiceForwarder {
	return &VoiceForwarder{
		sessionIDs: make(map[string]string),
		players:    players,
	}
}

// Register attaches the forwarder's handlers to a session.
func (f *VoiceForwarder) Register(s *discordgo.Session) {
	s.AddHandler(f.handleVoiceStateUpdate)
	s.AddHandler(f.handleVoiceServerUpdate)
}

func (f *VoiceForwarder) handleVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	// Only our own voice state carries the session id the node needs.
	if s.State.User == nil || vsu.UserID != s.State.User.ID {
		return
	}

	f.mu.Lock()
	if vsu.ChannelID == "" {
		delete(f.sessionIDs, vsu.GuildID)
	} else {
		f.sessionIDs[vsu.GuildID] = vsu.SessionID
	}
	f.mu.Unlock()
}

func (f *VoiceForwarder) handleVoiceServerUpdate(s *discordgo.Session, vsvu *discordgo.VoiceServerUpdate) {
	f.mu.Lock()
	sessionID, ok := f.sessionIDs[vsvu.GuildID]
	f.mu.Unlock()
	if !ok {
		slog.Warn("Voice server update before voice state update", "guildID", vsvu.GuildID)
		return
	}

	guildID, err := strconv.ParseUint(vsvu.GuildID, 10, 64)
	if err != nil {
		slog.Warn("Voice server update with unparsable guild ID", "guildID", vsvu.GuildID)
		return
	}

	player, ok := f.players.GetPlayer(guildID)
	if !ok {
		slog.Warn("Voice server update for guild without player", "guildID", guildID)
		return
	}

	if err := player.VoiceUpdate(sessionID, vsvu.Token, vsvu.Endpoint); err != nil {
		slog.Error("Failed to forward voice update", "guildID", guildID, "error", err)
	}
}
