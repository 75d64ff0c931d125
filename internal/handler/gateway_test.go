package handler_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"
	"github.com/soundlink/soundlink/internal/handler"
)

func TestParseShardMessage(t *testing.T) {
	got, err := handler.ParseShardMessage(`{"op":4,"d":{"guild_id":"42","channel_id":"7","self_mute":false,"self_deaf":true}}`)
	if err != nil {
		t.Fatalf("ParseShardMessage: %v", err)
	}
	want := handler.GatewayVoiceState{
		GuildID:   "42",
		ChannelID: "7",
		SelfDeaf:  true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("voice state mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShardMessageRejects(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"not json", "pure garbage"},
		{"wrong op", `{"op":8,"d":{"guild_id":"42"}}`},
		{"missing guild", `{"op":4,"d":{"channel_id":"7"}}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := handler.ParseShardMessage(test.message); err == nil {
				t.Errorf("ParseShardMessage(%q) succeeded, want error", test.message)
			}
		})
	}
}

func stateWithGuild(t *testing.T) *discordgo.State {
	t.Helper()
	st := discordgo.NewState()
	err := st.GuildAdd(&discordgo.Guild{
		ID: "42",
		Channels: []*discordgo.Channel{
			{ID: "7", GuildID: "42"},
		},
	})
	if err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	return st
}

func TestSessionGatewayCanAccess(t *testing.T) {
	session := &discordgo.Session{State: stateWithGuild(t)}
	gateway := handler.NewSessionGateway(session)

	tests := []struct {
		name      string
		guildID   string
		channelID string
		want      bool
	}{
		{"known guild and channel", "42", "7", true},
		{"known guild only", "42", "", true},
		{"unknown channel", "42", "999", false},
		{"unknown guild", "500", "", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := gateway.CanAccess(test.guildID, test.channelID)
			if got != test.want {
				t.Errorf("CanAccess(%q, %q) = %v, want %v", test.guildID, test.channelID, got, test.want)
			}
		})
	}
}

func TestSessionGatewayHasShard(t *testing.T) {
	ready := &discordgo.Session{State: discordgo.NewState(), ShardID: 0, DataReady: true}
	lagging := &discordgo.Session{State: discordgo.NewState(), ShardID: 1}
	gateway := handler.NewSessionGateway(ready, lagging)

	if !gateway.HasShard(0) {
		t.Error("ready shard reported missing")
	}
	if gateway.HasShard(1) {
		t.Error("shard without a ready gateway reported present")
	}
	if gateway.HasShard(9) {
		t.Error("unknown shard reported present")
	}
}
