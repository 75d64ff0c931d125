package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/soundlink/soundlink/internal/lavalink"
)

var volumeMin = float64(lavalink.MinVolume)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "join",
		Description: "Join the voice channel you are in",
	},
	{
		Name:        "leave",
		Description: "Leave the voice channel and drop the player",
	},
	{
		Name:        "play",
		Description: "Play a track by URL or search query",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "query",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "A URL or search terms",
				Required:    true,
			},
		},
	},
	{
		Name:        "search",
		Description: "Search and list the top matching tracks",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "query",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "Search terms",
				Required:    true,
			},
		},
	},
	{
		Name:        "stop",
		Description: "Stop playback",
	},
	{
		Name:        "pause",
		Description: "Pause playback",
	},
	{
		Name:        "resume",
		Description: "Resume playback",
	},
	{
		Name:        "volume",
		Description: "Set the player volume (1-150)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "level",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "Volume level",
				Required:    true,
				MinValue:    &volumeMin,
				MaxValue:    float64(lavalink.MaxVolume),
			},
		},
	},
	{
		Name:        "now",
		Description: "Show the currently playing track",
	},
	{
		Name:        "stats",
		Description: "Show audio node statistics",
	},
}

func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
