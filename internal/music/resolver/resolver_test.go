package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullVideo = `{"id":"v1","webpage_url":"https://www.youtube.com/watch?v=v1","title":"First","description":"0:00 Intro\n1:30 Verse","duration":212.5,"thumbnail":"https://i.ytimg.com/v1.jpg","uploader":"Artist","playlist_title":"Mix","playlist_uploader":"Curator"}`

const flatEntries = `{"id":"v2","url":"https://www.youtube.com/watch?v=v2","ie_key":"Youtube","title":"Second","duration":100,"channel":"Other","thumbnails":[{"url":"small"},{"url":"big"}]}
{"id":"v3","ie_key":"Youtube","title":"Third","duration":60}
{"id":"","title":"Deleted video"}
`

type call struct {
	args []string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	out   func(args []string) (string, error)
}

func (f *fakeRunner) run(_ context.Context, _ *ytdlp.Command, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{args: args})
	f.mu.Unlock()
	return f.out(args)
}

func newTestResolver(out func(args []string) (string, error)) (*Resolver, *fakeRunner) {
	f := &fakeRunner{out: out}
	r := New(Options{Logger: zerolog.Nop(), Timeout: time.Second})
	r.run = f.run
	return r, f
}

func TestResolveURL(t *testing.T) {
	r, f := newTestResolver(func([]string) (string, error) { return fullVideo + "\n", nil })

	info, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=v1&list=PL1")
	require.NoError(t, err)

	assert.Equal(t, "https://www.youtube.com/watch?v=v1", info.URL)
	assert.Equal(t, "First", info.Title)
	assert.Equal(t, 212500*time.Millisecond, info.Duration)
	assert.Equal(t, "Artist", info.Uploader)
	assert.Equal(t, "https://i.ytimg.com/v1.jpg", info.Thumbnail)
	assert.Contains(t, info.Description, "1:30 Verse")
	assert.Nil(t, info.Playlist)

	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{"--dump-json", "https://www.youtube.com/watch?v=v1"}, f.calls[0].args)
}

func TestResolveSearch(t *testing.T) {
	r, f := newTestResolver(func([]string) (string, error) { return fullVideo, nil })

	_, err := r.Resolve(context.Background(), "  lofi beats ")
	require.NoError(t, err)
	assert.Equal(t, "ytsearch1:lofi beats", f.calls[0].args[1])
}

func TestResolveNoResults(t *testing.T) {
	r, _ := newTestResolver(func([]string) (string, error) { return "\n", nil })

	_, err := r.Resolve(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestResolveMalformedIsNotRetried(t *testing.T) {
	r, f := newTestResolver(func([]string) (string, error) { return "{not json", nil })

	_, err := r.Resolve(context.Background(), "https://example.com/a")
	assert.Error(t, err)
	assert.Len(t, f.calls, 1)
}

func TestResolveRetriesToolFailures(t *testing.T) {
	attempts := 0
	r, _ := newTestResolver(func([]string) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("HTTP Error 503")
		}
		return fullVideo, nil
	})

	info, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=v1")
	require.NoError(t, err)
	assert.Equal(t, "First", info.Title)
	assert.Equal(t, 2, attempts)
}

func TestResolvePlaylist(t *testing.T) {
	n := 0
	r, f := newTestResolver(func(args []string) (string, error) {
		n++
		if n == 1 {
			return fullVideo, nil
		}
		return flatEntries, nil
	})

	infos, err := r.ResolvePlaylist(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, "First", infos[0].Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=v2", infos[1].URL)
	assert.Equal(t, "Other", infos[1].Uploader)
	assert.Equal(t, "big", infos[1].Thumbnail)
	assert.Equal(t, "https://www.youtube.com/watch?v=v3", infos[2].URL)
	assert.Equal(t, time.Minute, infos[2].Duration)

	for _, info := range infos {
		require.NotNil(t, info.Playlist)
		assert.Equal(t, "Mix", info.Playlist.Title)
		assert.Equal(t, "Curator", info.Playlist.Uploader)
	}
	assert.Len(t, f.calls, 2)
}

func TestIsPlaylistURL(t *testing.T) {
	r, _ := newTestResolver(nil)
	assert.True(t, r.IsPlaylistURL("https://www.youtube.com/watch?v=a&list=b"))
	assert.False(t, r.IsPlaylistURL("https://www.youtube.com/watch?v=a"))
}

func TestDecodeEntriesSkipsBlankLines(t *testing.T) {
	entries, err := decodeEntries(strings.Join([]string{"", fullVideo, "  ", fullVideo}, "\n"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
