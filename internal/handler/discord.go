package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/soundlink/soundlink/internal/lavalink"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID)
}

const commandTimeout = 10 * time.Second

// MakeInteractionCreateHandler wires the slash commands to the node
// manager's sessions. Range checks on user input happen here, before any
// value reaches a player.
func MakeInteractionCreateHandler(manager *lavalink.NodeManager, rest *lavalink.RestClient) InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		if i.GuildID == "" {
			respond(s, i, "This command only works in a server.")
			return
		}
		guildID, err := strconv.ParseUint(i.GuildID, 10, 64)
		if err != nil {
			slog.Warn("Interaction with unparsable guild ID", "guildID", i.GuildID)
			return
		}

		command := i.ApplicationCommandData()
		switch command.Name {
		case "join":
			handleJoin(s, i, manager, guildID)
		case "leave":
			handleLeave(s, i, manager, guildID)
		case "play":
			handlePlay(s, i, manager, rest, guildID, command.Options)
		case "search":
			handleSearch(s, i, rest, command.Options)
		case "stop":
			withPlayer(s, i, manager, guildID, func(p *lavalink.AudioPlayer) string {
				if err := p.Stop(); err != nil {
					slog.Error("Failed to stop playback", "guildID", guildID, "error", err)
					return "Could not stop playback."
				}
				return "Stopped playback."
			})
		case "pause":
			withPlayer(s, i, manager, guildID, func(p *lavalink.AudioPlayer) string {
				if err := p.SetPaused(true); err != nil {
					slog.Error("Failed to pause", "guildID", guildID, "error", err)
					return "Could not pause playback."
				}
				return "Paused."
			})
		case "resume":
			withPlayer(s, i, manager, guildID, func(p *lavalink.AudioPlayer) string {
				if err := p.SetPaused(false); err != nil {
					slog.Error("Failed to resume", "guildID", guildID, "error", err)
					return "Could not resume playback."
				}
				return "Resumed."
			})
		case "volume":
			handleVolume(s, i, manager, guildID, command.Options)
		case "now":
			handleNow(s, i, manager, rest, guildID)
		case "stats":
			handleStats(s, i, manager)
		}
	}
}

func handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, manager *lavalink.NodeManager, guildID uint64) {
	vs, err := s.State.VoiceState(i.GuildID, i.Member.User.ID)
	if err != nil || vs.ChannelID == "" {
		respond(s, i, "You must be in a voice channel.")
		return
	}

	players := manager.Players()
	player, ok := players.GetPlayer(guildID)
	if !ok {
		node := manager.BestNode()
		if node == nil {
			respond(s, i, "No audio node is available right now.")
			return
		}
		player, err = players.CreatePlayer(node, guildID)
		if err != nil {
			slog.Error("Failed to create player", "guildID", guildID, "error", err)
			respond(s, i, "Could not create a player for this server.")
			return
		}
	}

	if err := player.Connect(vs.ChannelID); err != nil {
		slog.Error("Failed to send connect", "guildID", guildID, "error", err)
		respond(s, i, "Could not reach the audio node.")
		return
	}
	respond(s, i, fmt.Sprintf("Joining <#%s>", vs.ChannelID))
}

func handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate, manager *lavalink.NodeManager, guildID uint64) {
	players := manager.Players()
	player, ok := players.GetPlayer(guildID)
	if !ok {
		respond(s, i, "Nothing to leave: no player for this server.")
		return
	}

	if err := player.Disconnect(); err != nil {
		slog.Error("Failed to send disconnect", "guildID", guildID, "error", err)
	}
	players.RemovePlayer(guildID)
	respond(s, i, "Left the voice channel.")
}

func handlePlay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	manager *lavalink.NodeManager,
	rest *lavalink.RestClient,
	guildID uint64,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	query := ""
	for _, option := range options {
		if option.Name == "query" {
			query = option.StringValue()
		}
	}
	if query == "" {
		respond(s, i, "usage: /play <url or search terms>")
		return
	}

	player, ok := manager.Players().GetPlayer(guildID)
	if !ok {
		respond(s, i, "Use /join first so I know where to play.")
		return
	}

	identifier := query
	if !strings.Contains(query, "://") {
		identifier = "ytsearch:" + query
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	tracks, err := rest.LoadTracks(ctx, identifier)
	if err != nil {
		slog.Error("Failed to load tracks", "identifier", identifier, "error", err)
		respond(s, i, "Could not load any tracks for that query.")
		return
	}
	if len(tracks) == 0 {
		respond(s, i, "No tracks matched that query.")
		return
	}

	track := tracks[0]
	if err := player.Play(track.Track); err != nil {
		slog.Error("Failed to play track", "guildID", guildID, "error", err)
		respond(s, i, "Could not start playback.")
		return
	}
	respond(s, i, fmt.Sprintf("Now playing **%s** by %s", track.Info.Title, track.Info.Author))
}

func handleSearch(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	rest *lavalink.RestClient,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	query := ""
	for _, option := range options {
		if option.Name == "query" {
			query = option.StringValue()
		}
	}
	if query == "" {
		respond(s, i, "usage: /search <search terms>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	tracks, err := rest.LoadTracks(ctx, "ytsearch:"+query)
	if err != nil {
		slog.Error("Failed to search tracks", "query", query, "error", err)
		respond(s, i, "Could not search for that query.")
		return
	}
	if len(tracks) == 0 {
		respond(s, i, "No tracks matched that query.")
		return
	}
	respond(s, i, FormatSearchResults(tracks))
}

func handleStats(s *discordgo.Session, i *discordgo.InteractionCreate, manager *lavalink.NodeManager) {
	nodes := manager.Nodes()
	if len(nodes) == 0 {
		respond(s, i, "No audio nodes connected.")
		return
	}

	lines := make([]string, 0, len(nodes))
	for _, node := range nodes {
		stats, ok := node.Stats()
		if !ok {
			lines = append(lines, node.WebSocketHost+": no stats yet")
			continue
		}
		penalty, err := lavalink.Penalty(node)
		if err != nil {
			penalty = 0
		}
		lines = append(lines, FormatNodeStats(node.WebSocketHost, stats, penalty))
	}
	respond(s, i, strings.Join(lines, "\n"))
}

func handleVolume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	manager *lavalink.NodeManager,
	guildID uint64,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	var level int64 = -1
	for _, option := range options {
		if option.Name == "level" {
			level = option.IntValue()
		}
	}
	if err := ValidateVolume(level); err != nil {
		respond(s, i, err.Error())
		return
	}

	withPlayer(s, i, manager, guildID, func(p *lavalink.AudioPlayer) string {
		if err := p.SetVolume(int(level)); err != nil {
			slog.Error("Failed to set volume", "guildID", guildID, "error", err)
			return "Could not set the volume."
		}
		return fmt.Sprintf("Volume set to %d.", level)
	})
}

func handleNow(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	manager *lavalink.NodeManager,
	rest *lavalink.RestClient,
	guildID uint64,
) {
	player, ok := manager.Players().GetPlayer(guildID)
	if !ok {
		respond(s, i, "No player for this server.")
		return
	}
	track, ok := player.Track()
	if !ok {
		respond(s, i, "Nothing is playing.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	position := FormatTrackPosition(player.Position())
	decoded, err := rest.DecodeTrack(ctx, track)
	if err != nil {
		slog.Warn("Failed to decode current track", "guildID", guildID, "error", err)
		respond(s, i, fmt.Sprintf("Playing an unresolved track at %s", position))
		return
	}
	respond(s, i, fmt.Sprintf("Playing **%s** by %s at %s", decoded.Info.Title, decoded.Info.Author, position))
}

// ValidateVolume rejects out-of-range volume input before it reaches a
// player.
func ValidateVolume(level int64) error {
	if level < lavalink.MinVolume || level > lavalink.MaxVolume {
		return &UserError{
			Message: fmt.Sprintf("Volume must be between %d and %d.", lavalink.MinVolume, lavalink.MaxVolume),
		}
	}
	return nil
}

// FormatTrackPosition renders a millisecond position as m:ss.
func FormatTrackPosition(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// maxSearchResults caps how many matches the search command lists.
const maxSearchResults = 3

// FormatSearchResults renders search matches as a numbered list.
func FormatSearchResults(tracks []lavalink.LoadedTrack) string {
	if len(tracks) > maxSearchResults {
		tracks = tracks[:maxSearchResults]
	}

	var b strings.Builder
	b.WriteString("Top results:")
	for n, track := range tracks {
		fmt.Fprintf(&b, "\n%d. **%s** by %s (%s)",
			n+1, track.Info.Title, track.Info.Author, FormatTrackPosition(track.Info.Length))
	}
	return b.String()
}

// FormatNodeStats renders one node's line for the stats command.
func FormatNodeStats(host string, stats lavalink.RemoteStats, penalty int) string {
	return fmt.Sprintf("%s: %d of %d players active, system load %.0f%%, penalty %d",
		host, stats.PlayingPlayers, stats.Players, stats.CPU.SystemLoad*100, penalty)
}

func withPlayer(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	manager *lavalink.NodeManager,
	guildID uint64,
	fn func(p *lavalink.AudioPlayer) string,
) {
	player, ok := manager.Players().GetPlayer(guildID)
	if !ok {
		respond(s, i, "No player for this server. Use /join first.")
		return
	}
	respond(s, i, fn(player))
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	if handlers.Ready != nil {
		s.AddHandler(handlers.Ready)
	}
	if handlers.InteractionCreate != nil {
		s.AddHandler(handlers.InteractionCreate)
	}
	s.Identify.Intents |= discordgo.IntentGuildVoiceStates

	return s, nil
}
