// Package media holds the track metadata shared by the resolver, the player
// and the presentation layer.
package media

import "time"

// PlaylistInfo describes the playlist a track was imported from.
type PlaylistInfo struct {
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
}

// MediaInfo describes one playable track. Values are never mutated after the
// resolver produces them, so they are passed and stored by value.
type MediaInfo struct {
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	Duration    time.Duration `json:"duration"`
	Description string        `json:"description,omitempty"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Uploader    string        `json:"uploader,omitempty"`
	Playlist    *PlaylistInfo `json:"playlist,omitempty"`
}

// IsEmpty reports whether m is the placeholder used when nothing is playing.
func (m MediaInfo) IsEmpty() bool {
	return m.URL == "" && m.Title == ""
}

// WithPlaylist returns a copy of m tagged with the given playlist.
func (m MediaInfo) WithPlaylist(p PlaylistInfo) MediaInfo {
	m.Playlist = &p
	return m
}
