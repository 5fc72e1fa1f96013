package discord

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/resolver"
	"github.com/keshon/jukebox/internal/storage"
)

func TestEveryCommandHasAHandler(t *testing.T) {
	handlers := (&Bot{}).handlers()
	defs := commandDefinitions()

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		assert.False(t, seen[def.Name], "duplicate command %s", def.Name)
		seen[def.Name] = true
		assert.Contains(t, handlers, def.Name)
	}
	assert.Len(t, handlers, len(defs))
}

func TestHashCommandIgnoresOptionOrder(t *testing.T) {
	a := &discordgo.ApplicationCommand{
		Name:        "seek",
		Description: "Seek",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "a", Description: "first"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "b", Description: "second"},
		},
	}
	b := &discordgo.ApplicationCommand{
		ID:          "123",
		Version:     "7",
		Name:        "seek",
		Description: "Seek",
		Options:     []*discordgo.ApplicationCommandOption{a.Options[1], a.Options[0]},
	}
	assert.Equal(t, hashCommand(a), hashCommand(b))

	b.Description = "Seek somewhere"
	assert.NotEqual(t, hashCommand(a), hashCommand(b))
}

func TestCommandCache(t *testing.T) {
	c := commandCache{dir: t.TempDir() + "/commands"}
	assert.Empty(t, c.load("guild"))

	require.NoError(t, c.save("guild", map[string]string{"play": "abc"}))
	assert.Equal(t, map[string]string{"play": "abc"}, c.load("guild"))
	assert.Empty(t, c.load("other"))
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90", 90 * time.Second},
		{" 0 ", 0},
		{"1:30", 90 * time.Second},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second},
	}
	for _, tt := range tests {
		got, err := parsePosition(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"-5", "-1:00", "soon", ""} {
		_, err := parsePosition(bad)
		assert.Error(t, err, bad)
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Nothing is playing", userMessage(fmt.Errorf("skip: %w", player.ErrNotPlaying)))
	assert.Equal(t, "Not connected to a voice channel", userMessage(player.ErrNotConnected))
	assert.Equal(t, "No results found", userMessage(resolver.ErrNoResults))
	assert.Equal(t, "Looking up the track took too long", userMessage(context.DeadlineExceeded))
	assert.Equal(t, ErrUserNotInVoice.Error(), userMessage(ErrUserNotInVoice))
	assert.Equal(t, "Failed: boom", userMessage(errors.New("boom")))
}

func TestPlaylistMessage(t *testing.T) {
	assert.Equal(t, "No playlist with that name", playlistMessage(storage.ErrPlaylistNotFound))
	assert.Equal(t, "A playlist with that name already exists", playlistMessage(fmt.Errorf("x: %w", storage.ErrPlaylistExists)))
	assert.Equal(t, "Nothing is playing", playlistMessage(player.ErrNotPlaying))
}

func TestOptions(t *testing.T) {
	opts := options([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "song"},
		{Name: "page", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
	})
	assert.Equal(t, "song", stringOption(opts, "query"))
	assert.Equal(t, "", stringOption(opts, "missing"))
	assert.Equal(t, 3, intOption(opts, "page", 1))
	assert.Equal(t, 1, intOption(opts, "missing", 1))
}

func TestInvoker(t *testing.T) {
	member := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "m"}},
	}}
	assert.Equal(t, "m", invoker(member).ID)

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "u"}}}
	assert.Equal(t, "u", invoker(dm).ID)
}

func TestVoiceSessions(t *testing.T) {
	v := newVoiceSessions()
	_, ok := v.get("g")
	assert.False(t, ok)

	v.put("g", voiceSession{channelID: "c", deaf: true})
	s, ok := v.get("g")
	require.True(t, ok)
	assert.Equal(t, "c", s.channelID)
	assert.True(t, s.deaf)

	v.remove("g")
	_, ok = v.get("g")
	assert.False(t, ok)
}
