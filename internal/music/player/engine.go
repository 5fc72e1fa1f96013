package player

import (
	"context"
	"time"

	"github.com/keshon/jukebox/internal/music/media"
)

// Source is an opened, playable track. Only the Engine that produced it
// knows what is inside.
type Source any

// Engine turns a track URL into audio sent to a voice connection.
type Engine interface {
	Open(ctx context.Context, url string) (Source, error)
	Start(src Source) Handle
	Play(voice Voice, h Handle)
}

// Handle controls one started track.
//
// The OnEnd callback must fire exactly once, whether the track runs out on
// its own or is stopped. Stop and Seek must not block on the playback
// goroutine and must not call back into the player. Once the track has ended,
// Seek and Position return ErrHandleEnded.
type Handle interface {
	Stop() error
	Seek(pos time.Duration) error
	Position() (time.Duration, error)
	OnEnd(fn func()) error
}

// Voice is the transport a guild's audio is sent on.
type Voice interface {
	Speaking(on bool) error
	Frames() chan<- []byte
}

// Notifier routes per-track failures back to whoever queued the track.
type Notifier interface {
	TrackFailed(info media.MediaInfo, err error)
}

// Playback is a snapshot of the playing track.
type Playback struct {
	Info    media.MediaInfo
	Elapsed time.Duration
}
