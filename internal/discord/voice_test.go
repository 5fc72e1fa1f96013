package discord

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/player"
)

// idleEngine backs players that never get a track.
type idleEngine struct{}

func (idleEngine) Open(context.Context, string) (player.Source, error) {
	return nil, errors.New("not used")
}
func (idleEngine) Start(player.Source) player.Handle { return nil }
func (idleEngine) Play(player.Voice, player.Handle)  {}

func TestConcurrentJoinsShareOneConnection(t *testing.T) {
	registry := player.NewRegistry(idleEngine{}, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = registry.Shutdown(ctx)
	})

	shared := &discordgo.VoiceConnection{}
	var calls atomic.Int32
	b := &Bot{
		registry: registry,
		voices:   newVoiceSessions(),
		log:      zerolog.Nop(),
		joinVoice: func(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error) {
			calls.Add(1)
			return shared, nil
		},
	}

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for n := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[n] = b.join("g1", "c1")
		}()
	}
	wg.Wait()

	var joined int
	for _, err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.ErrorIs(t, err, player.ErrAlreadyConnected)
	}
	assert.Equal(t, 1, joined)
	assert.Equal(t, int32(1), calls.Load())

	s, ok := b.voices.get("g1")
	require.True(t, ok)
	assert.Same(t, shared, s.vc)
	assert.True(t, registry.Connected("g1"))
}

func TestJoinLockIsPerGuild(t *testing.T) {
	v := newVoiceSessions()
	unlock := v.lock("a")

	done := make(chan struct{})
	go func() {
		v.lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("guild b waited on guild a")
	}

	blocked := make(chan struct{})
	go func() {
		v.lock("a")()
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatal("second lock on guild a did not wait")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("guild a lock was never released")
	}
}
