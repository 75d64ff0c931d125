package lavalink

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStats means a node has not yet received its first stats message,
	// so no penalty can be computed for it.
	ErrNoStats = errors.New("no stats received from node yet")

	// ErrNodeClosed means a frame could not be enqueued because the node's
	// connection has been closed.
	ErrNodeClosed = errors.New("node connection is closed")

	// ErrVolumeOutOfRange means a volume outside [MinVolume, MaxVolume]
	// reached a player.
	ErrVolumeOutOfRange = fmt.Errorf("volume must be between %d and %d", MinVolume, MaxVolume)

	// ErrNotImplemented marks operations the protocol names but this client
	// has never implemented.
	ErrNotImplemented = errors.New("not implemented")

	// ErrMissingOp means an inbound frame carried no "op" field.
	ErrMissingOp = errors.New("frame has no op field")
)

// DuplicatePlayerError is returned by CreatePlayer when the guild already
// has a live player.
type DuplicatePlayerError struct {
	GuildID uint64
}

func (e *DuplicatePlayerError) Error() string {
	return fmt.Sprintf("player already exists for guild %d", e.GuildID)
}

var _ error = (*DuplicatePlayerError)(nil)
