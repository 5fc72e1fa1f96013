package player

import "errors"

var (
	ErrNotConnected        = errors.New("not connected to a voice channel")
	ErrAlreadyConnected    = errors.New("already connected to a voice channel")
	ErrNotPlaying          = errors.New("no track is currently playing")
	ErrSeekOutOfRange      = errors.New("seek position out of range")
	ErrPlaybackQueryFailed = errors.New("unable to query playback position")

	// ErrHandleEnded is returned by a Handle whose track has finished but
	// whose end callback the player has not seen yet.
	ErrHandleEnded = errors.New("track has already ended")

	// Per-track failures, delivered to the track's Notifier only.
	ErrSourceOpenFailed         = errors.New("youtube-dl or ffmpeg failed")
	ErrEngineRegistrationFailed = errors.New("unable to initialize track end handler")
)
