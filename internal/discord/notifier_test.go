package discord

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/player"
)

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type recorder struct {
	mu   sync.Mutex
	sent []sentEmbed
	err  error
}

func (r *recorder) send(channelID string, embed *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmbed{channelID, embed})
	return r.err
}

func TestNotifierPerChannel(t *testing.T) {
	rec := &recorder{}
	n := newNotifiers(rec.send, 1, zerolog.Nop())

	a := n.forChannel("a")
	assert.Same(t, a, n.forChannel("a"))
	assert.NotSame(t, a, n.forChannel("b"))
}

func TestNotifierSendsFailure(t *testing.T) {
	rec := &recorder{}
	n := newNotifiers(rec.send, 1, zerolog.Nop())

	err := fmt.Errorf("open %s: %w", "x", player.ErrSourceOpenFailed)
	n.forChannel("chan").TrackFailed(song("broken"), err)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "chan", rec.sent[0].channelID)
	assert.Equal(t, colorError, rec.sent[0].embed.Color)
	assert.Contains(t, rec.sent[0].embed.Description, "Error playing track: youtube-dl or ffmpeg failed")
	assert.Contains(t, rec.sent[0].embed.Description, "[broken]")
}

func TestNotifierThrottles(t *testing.T) {
	rec := &recorder{}
	n := newNotifiers(rec.send, 0.001, zerolog.Nop())

	c := n.forChannel("chan")
	for range 10 {
		c.TrackFailed(song("broken"), errors.New("boom"))
	}
	assert.Len(t, rec.sent, 3)

	n.forChannel("other").TrackFailed(song("broken"), errors.New("boom"))
	assert.Len(t, rec.sent, 4)
}

func TestNotifierSendErrorIsSwallowed(t *testing.T) {
	rec := &recorder{err: errors.New("discord down")}
	n := newNotifiers(rec.send, 1, zerolog.Nop())

	assert.NotPanics(t, func() {
		n.forChannel("chan").TrackFailed(song("broken"), errors.New("boom"))
	})
	assert.Len(t, rec.sent, 1)
}

func TestTrackFailureReason(t *testing.T) {
	wrapped := fmt.Errorf("guild 1: %w", player.ErrEngineRegistrationFailed)
	assert.Equal(t, player.ErrEngineRegistrationFailed.Error(), trackFailureReason(wrapped))
	assert.Equal(t, "boom", trackFailureReason(errors.New("boom")))
}
