package lavalink

// EventListener receives session lifecycle events. One listener is shared
// by the whole player registry, so every callback is handed the affected
// player rather than closing over one.
//
// Callbacks run on the receive loop of the node that produced the event
// (or on the caller's goroutine for client-initiated events) and should
// return quickly.
type EventListener interface {
	OnPlayerPause(p *AudioPlayer)
	OnPlayerResume(p *AudioPlayer)
	OnTrackStart(p *AudioPlayer, track string)
	OnTrackEnd(p *AudioPlayer, track, reason string)
	OnTrackException(p *AudioPlayer, track, message string)
	OnTrackStuck(p *AudioPlayer, track string, thresholdMs int64)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnPlayerPause(*AudioPlayer) {}
func (NopListener) OnPlayerResume(*AudioPlayer) {}
func (NopListener) OnTrackStart(*AudioPlayer, string) {}
func (NopListener) OnTrackEnd(*AudioPlayer, string, string) {}
func (NopListener) OnTrackException(*AudioPlayer, string, string) {}
func (NopListener) OnTrackStuck(*AudioPlayer, string, int64) {}

var _ EventListener = NopListener{}
