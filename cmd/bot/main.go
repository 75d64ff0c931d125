package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/soundlink/soundlink/internal/config"
	"github.com/soundlink/soundlink/internal/handler"
	"github.com/soundlink/soundlink/internal/lavalink"
	"github.com/soundlink/soundlink/internal/logging"
)

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	loggingConfig, err := config.NewLoggingConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load logging config: %w", err)
	}
	logging.Setup(loggingConfig)

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}

	lavalinkConfig, err := config.NewLavalinkConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load lavalink config: %w", err)
	}

	// The session, gateway and node manager reference each other, so the
	// interaction handler closes over the manager before any node exists;
	// nodes are added once the session is open and our user id is known.
	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	gateway := handler.NewSessionGateway(session)
	manager := lavalink.NewNodeManager(gateway, handler.SlogListener{})
	defer manager.Close()

	handler.NewVoiceForwarder(manager.Players()).Register(session)
	session.AddHandler(handler.ReadyLog)

	nodeConfig := lavalink.NodeConfig{
		HTTPHost:      lavalinkConfig.HTTPHost,
		WebSocketHost: lavalinkConfig.WebSocketHost,
		Password:      lavalinkConfig.Password,
		NumShards:     lavalinkConfig.NumShards,
	}
	rest := lavalink.NewRestClient(nodeConfig, nil)
	session.AddHandler(handler.MakeInteractionCreateHandler(manager, rest))

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	nodeConfig.UserID = session.State.User.ID
	if err := manager.AddNode(nodeConfig); err != nil {
		return fmt.Errorf("failed to add audio node: %w", err)
	}

	if err := handler.EstablishCommands(session, discordConfig.GuildID); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	slog.Info("Bot is running, press Ctrl+C to exit")
	<-stop

	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}
