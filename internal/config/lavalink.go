package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// LavalinkConfig locates one remote audio node. The protocol user id is
// not configured here: it is only known once the Discord session is open.
type LavalinkConfig struct {
	HTTPHost      string `env:"LAVALINK_HTTP_HOST, default=http://localhost:2333"`
	WebSocketHost string `env:"LAVALINK_WEBSOCKET_HOST, default=ws://localhost:8060"`
	Password      string `env:"LAVALINK_PASSWORD, required"`
	NumShards     int    `env:"LAVALINK_NUM_SHARDS, default=1"`
}

func NewLavalinkConfigFromEnv() (*LavalinkConfig, error) {
	var cfg LavalinkConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
