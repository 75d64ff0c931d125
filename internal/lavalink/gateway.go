package lavalink

// Gateway is the chat-platform collaborator a node consults while
// servicing server -> client requests. The implementation is usually a
// thin wrapper over the chat library's session(s); see internal/handler.
type Gateway interface {
	// SendToShard forwards a raw gateway payload the node asked us to
	// relay (the sendWS opcode) to the identified shard.
	SendToShard(shardID uint64, message string) error

	// HasShard reports whether the identified shard is currently connected.
	HasShard(shardID uint64) bool

	// CanAccess reports whether the guild (and, when non-empty, the
	// channel) is known and accessible to this client.
	CanAccess(guildID, channelID string) bool
}
