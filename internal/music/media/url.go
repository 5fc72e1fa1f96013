package media

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubePattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)

// IsURL reports whether s looks like an http(s) link rather than a search.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func IsYouTubeURL(s string) bool {
	return youtubePattern.MatchString(s)
}

// IsPlaylistURL reports whether s points at a YouTube playlist, either
// directly or through a video opened from one.
func IsPlaylistURL(s string) bool {
	return strings.Contains(s, "youtube.com") &&
		(strings.Contains(s, "/playlist?list=") || strings.Contains(s, "&list="))
}

// CleanVideoURL drops everything but the video id from a YouTube watch or
// short link. Other URLs are returned unchanged.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := u.Hostname()
	switch host {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return fmt.Sprintf("https://youtu.be/%s", vid)

	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
			}
		}
	}
	return raw
}

// YouTubeID extracts the video id from a watch or short link.
func YouTubeID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid YouTube URL: %w", err)
	}

	switch u.Hostname() {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok && rest != "" {
			return strings.Trim(rest, "/"), nil
		}
	}
	return "", errors.New("unsupported YouTube URL format")
}

// YouTubeWatchURL builds the canonical watch link for a video id.
func YouTubeWatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
