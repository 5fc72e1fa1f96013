// Package storage persists per-user play history and saved playlists.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/media"
)

const (
	DriverDatastore = "datastore"
	DriverSQLite    = "sqlite"

	// HistoryLimit is how many history entries are kept per user.
	HistoryLimit = 100
)

var (
	ErrPlaylistExists   = errors.New("playlist already exists")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrTrackNotFound    = errors.New("track not found in playlist")
	ErrInvalidName      = errors.New("playlist name must not be empty")
)

type HistoryEntry struct {
	Info     media.MediaInfo `json:"info"`
	PlayedAt time.Time       `json:"played_at"`
}

// Store is implemented by every storage driver. History is returned latest
// first.
type Store interface {
	AddHistory(userID string, info media.MediaInfo) error
	History(userID string, limit, offset int) ([]HistoryEntry, int, error)

	CreatePlaylist(userID, name string) error
	DeletePlaylist(userID, name string) error
	Playlists(userID string) ([]string, error)
	Playlist(userID, name string) ([]media.MediaInfo, error)
	AddToPlaylist(userID, name string, info media.MediaInfo) error
	RemoveFromPlaylist(userID, name, url string) error

	Close() error
}

// Open returns the store for driver backed by the file at path.
func Open(driver, path string, log zerolog.Logger) (Store, error) {
	log = logging.Component(log, "storage").With().Str("driver", driver).Logger()

	var (
		s   Store
		err error
	)
	switch driver {
	case DriverDatastore, "":
		s, err = openDatastore(path, log)
	case DriverSQLite:
		s, err = openSQLite(path, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage at %s: %w", driver, path, err)
	}

	log.Info().Str("path", path).Msg("storage opened")
	return s, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// page applies limit/offset to n items and returns the [lo, hi) bounds.
func page(n, limit, offset int) (int, int) {
	if limit <= 0 || offset >= n {
		return 0, 0
	}
	offset = max(offset, 0)
	return offset, min(offset+limit, n)
}
