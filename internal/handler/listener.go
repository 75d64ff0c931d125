package handler

import (
	"log/slog"

	"github.com/soundlink/soundlink/internal/lavalink"
)

// SlogListener logs every session lifecycle event. It is the bot's default
// listener; richer behavior (announcement channels, queue advancement)
// layers on the same interface.
type SlogListener struct{}

var _ lavalink.EventListener = SlogListener{}

func (SlogListener) OnPlayerPause(p *lavalink.AudioPlayer) {
	slog.Info("Player paused", "guildID", p.GuildID())
}

func (SlogListener) OnPlayerResume(p *lavalink.AudioPlayer) {
	slog.Info("Player resumed", "guildID", p.GuildID())
}

func (SlogListener) OnTrackStart(p *lavalink.AudioPlayer, track string) {
	slog.Info("Track started", "guildID", p.GuildID(), "track", track)
}

func (SlogListener) OnTrackEnd(p *lavalink.AudioPlayer, track, reason string) {
	slog.Info("Track ended", "guildID", p.GuildID(), "track", track, "reason", reason)
}

func (SlogListener) OnTrackException(p *lavalink.AudioPlayer, track, message string) {
	slog.Warn("Track exception", "guildID", p.GuildID(), "track", track, "message", message)
}

func (SlogListener) OnTrackStuck(p *lavalink.AudioPlayer, track string, thresholdMs int64) {
	slog.Warn("Track stuck", "guildID", p.GuildID(), "track", track, "thresholdMs", thresholdMs)
}
