package player

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/media"
)

func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	saved := defaultRegistry
	defaultRegistry = nil
	defaultMu.Unlock()

	t.Cleanup(func() {
		defaultMu.Lock()
		defaultRegistry = saved
		defaultMu.Unlock()
	})
}

func TestInitTwicePanics(t *testing.T) {
	resetDefault(t)

	assert.Panics(t, func() { Default() })

	r := Init(newFakeEngine(), zerolog.Nop())
	assert.Same(t, r, Default())
	assert.Panics(t, func() { Init(newFakeEngine(), zerolog.Nop()) })
}

func TestStartTwiceFails(t *testing.T) {
	r := newTestRegistry(newFakeEngine())
	require.NoError(t, r.Start("g1", newFakeVoice()))
	defer r.Quit("g1")

	first, err := r.get("g1")
	require.NoError(t, err)

	assert.ErrorIs(t, r.Start("g1", newFakeVoice()), ErrAlreadyConnected)

	again, err := r.get("g1")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestUnknownGuild(t *testing.T) {
	r := newTestRegistry(newFakeEngine())

	assert.ErrorIs(t, r.Quit("nope"), ErrNotConnected)
	assert.ErrorIs(t, r.Skip("nope"), ErrNotConnected)
	assert.ErrorIs(t, r.Seek("nope", time.Second), ErrNotConnected)
	assert.ErrorIs(t, r.Enqueue("nope", track("a"), nil), ErrNotConnected)
	assert.ErrorIs(t, r.EnqueueNext("nope", track("a"), nil), ErrNotConnected)
	assert.ErrorIs(t, r.EnqueueBatch("nope", []media.MediaInfo{track("a")}, nil), ErrNotConnected)

	_, _, err := r.ReadQueue("nope", 0, 10)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = r.NowPlaying("nope")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.False(t, r.Connected("nope"))
}

func TestGuildsAreIndependent(t *testing.T) {
	r := newTestRegistry(newFakeEngine())
	v1, v2 := newFakeVoice(), newFakeVoice()
	require.NoError(t, r.Start("g2", v2))
	require.NoError(t, r.Start("g1", v1))
	assert.Equal(t, []string{"g1", "g2"}, r.Guilds())

	require.NoError(t, r.Enqueue("g1", track("a"), nil))
	require.NoError(t, r.Enqueue("g2", track("b"), nil))
	h1 := v1.next(t)
	h2 := v2.next(t)

	require.NoError(t, r.Quit("g1"))
	assert.True(t, h1.isEnded())
	assert.False(t, h2.isEnded())
	assert.True(t, r.Connected("g2"))

	pb, err := r.NowPlaying("g2")
	require.NoError(t, err)
	require.NotNil(t, pb)
	assert.Equal(t, "b", pb.Info.URL)

	require.NoError(t, r.Quit("g2"))
}

func TestShutdownWaitsForWorkers(t *testing.T) {
	r := newTestRegistry(newFakeEngine())
	v1, v2 := newFakeVoice(), newFakeVoice()
	require.NoError(t, r.Start("g1", v1))
	require.NoError(t, r.Start("g2", v2))
	p1, _ := r.get("g1")
	p2, _ := r.get("g2")

	require.NoError(t, r.Enqueue("g1", track("a"), nil))
	h := v1.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	assert.True(t, h.isEnded())
	assert.Empty(t, r.Guilds())
	for _, p := range []*GuildPlayer{p1, p2} {
		select {
		case <-p.Done():
		default:
			t.Fatalf("worker for %s still running", p.GuildID())
		}
	}
}
