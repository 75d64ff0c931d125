package lavalink

// Opcode tags every protocol message. The wire value is the lowerCamelCase
// string carried in the message's "op" field.
type Opcode string

// Client -> server opcodes.
const (
	OpConnect        Opcode = "connect"
	OpDisconnect     Opcode = "disconnect"
	OpPlay           Opcode = "play"
	OpStop           Opcode = "stop"
	OpPause          Opcode = "pause"
	OpSeek           Opcode = "seek"
	OpVolume         Opcode = "volume"
	OpVoiceUpdate    Opcode = "voiceUpdate"
	OpValidationRes  Opcode = "validationRes"
	OpIsConnectedRes Opcode = "isConnectedRes"
)

// Server -> client opcodes.
const (
	OpValidationReq  Opcode = "validationReq"
	OpIsConnectedReq Opcode = "isConnectedReq"
	OpPlayerUpdate   Opcode = "playerUpdate"
	OpStats          Opcode = "stats"
	OpEvent          Opcode = "event"
	OpSendWS         Opcode = "sendWS"
)

// OpUnknown is the sentinel for inbound tags this client does not recognize.
// Frames carrying it are discarded without aborting the receive loop.
const OpUnknown Opcode = "unknown"

var opcodes = map[string]Opcode{
	"connect":        OpConnect,
	"disconnect":     OpDisconnect,
	"play":           OpPlay,
	"stop":           OpStop,
	"pause":          OpPause,
	"seek":           OpSeek,
	"volume":         OpVolume,
	"voiceUpdate":    OpVoiceUpdate,
	"validationRes":  OpValidationRes,
	"isConnectedRes": OpIsConnectedRes,
	"validationReq":  OpValidationReq,
	"isConnectedReq": OpIsConnectedReq,
	"playerUpdate":   OpPlayerUpdate,
	"stats":          OpStats,
	"event":          OpEvent,
	"sendWS":         OpSendWS,
}

// ParseOpcode maps a wire tag to its Opcode, or OpUnknown.
func ParseOpcode(s string) Opcode {
	if op, ok := opcodes[s]; ok {
		return op
	}
	return OpUnknown
}

func (o Opcode) String() string {
	return string(o)
}
