package player

import (
	"github.com/google/uuid"
	"github.com/keshon/jukebox/internal/music/media"
)

// Entry is an item in a guild queue: a Track or the Shutdown sentinel.
type Entry interface {
	isEntry()
}

// Track is a request to play one piece of media.
type Track struct {
	ID       uuid.UUID
	Info     media.MediaInfo
	Notifier Notifier
}

// Shutdown wakes the worker and makes it exit. It is never played.
type Shutdown struct{}

func (Track) isEntry()    {}
func (Shutdown) isEntry() {}

func newTrack(info media.MediaInfo, n Notifier) Track {
	return Track{ID: uuid.New(), Info: info, Notifier: n}
}

func (t Track) notify(err error) {
	if t.Notifier != nil {
		t.Notifier.TrackFailed(t.Info, err)
	}
}
