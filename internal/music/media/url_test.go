package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaylistURL(t *testing.T) {
	cases := map[string]bool{
		"https://www.youtube.com/playlist?list=PL123":    true,
		"https://www.youtube.com/watch?v=abc&list=PL123": true,
		"https://www.youtube.com/watch?v=abc":            false,
		"https://youtu.be/abc?list=PL123":                false,
		"https://soundcloud.com/someone/sets/x?list=1":   false,
		"never gonna give you up":                        false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsPlaylistURL(in), in)
	}
}

func TestCleanVideoURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", CleanVideoURL("https://www.youtube.com/watch?v=abc&list=PL1&index=2"))
	assert.Equal(t, "https://youtu.be/abc", CleanVideoURL("https://youtu.be/abc?t=42"))
	assert.Equal(t, "https://example.com/a?b=c", CleanVideoURL("https://example.com/a?b=c"))
}

func TestYouTubeID(t *testing.T) {
	for in, want := range map[string]string{
		"https://www.youtube.com/watch?v=abc&list=x": "abc",
		"https://youtu.be/xyz?t=3":                   "xyz",
		"https://music.youtube.com/watch?v=m1":       "m1",
		"https://www.youtube.com/shorts/s1":          "s1",
	} {
		id, err := YouTubeID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, id)
	}

	_, err := YouTubeID("https://example.com/watch?v=abc")
	assert.Error(t, err)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://x"))
	assert.False(t, IsURL("lofi beats"))
	assert.True(t, IsYouTubeURL("https://www.youtube.com/watch?v=a"))
	assert.False(t, IsYouTubeURL("https://vimeo.com/1"))
	assert.Equal(t, "https://www.youtube.com/watch?v=id", YouTubeWatchURL("id"))
}
