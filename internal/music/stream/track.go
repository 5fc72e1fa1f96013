package stream

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/player"
)

var (
	ErrTrackEnded    = player.ErrHandleEnded
	ErrEndHandlerSet = errors.New("end handler already registered")
)

// Track is the handle of one started source. Its end callback fires exactly
// once: when the audio runs out, when decoding fails, or when it is stopped.
type Track struct {
	engine *Engine
	src    *source
	log    zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	seek     chan time.Duration

	mu      sync.Mutex
	started bool
	ended   bool
	offset  time.Duration
	frames  int64
	onEnd   func()
}

var _ player.Handle = (*Track)(nil)

func newTrack(e *Engine, src *source) *Track {
	return &Track{
		engine: e,
		src:    src,
		log:    e.log.With().Str("url", src.url).Str("via", src.via).Logger(),
		stop:   make(chan struct{}),
		seek:   make(chan time.Duration, 1),
	}
}

// Stop ends the track. A track that never started playing ends right away.
func (t *Track) Stop() error {
	t.stopOnce.Do(func() { close(t.stop) })

	t.mu.Lock()
	started := t.started
	t.mu.Unlock()

	if !started {
		t.finish()
	}
	return nil
}

// Seek restarts decoding at pos.
func (t *Track) Seek(pos time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return ErrTrackEnded
	}
	t.offset = pos
	t.frames = 0
	if t.started {
		select {
		case <-t.seek:
		default:
		}
		t.seek <- pos
	}
	return nil
}

// Position returns how far into the track playback is.
func (t *Track) Position() (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return 0, ErrTrackEnded
	}
	return t.offset + time.Duration(t.frames)*frameDuration, nil
}

// OnEnd registers the end callback. Only one may be registered.
func (t *Track) OnEnd(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return ErrTrackEnded
	}
	if t.onEnd != nil {
		return ErrEndHandlerSet
	}
	t.onEnd = fn
	return nil
}

func (t *Track) advance() {
	t.mu.Lock()
	t.frames++
	t.mu.Unlock()
}

func (t *Track) finish() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	fn := t.onEnd
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (t *Track) play(voice player.Voice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.stop:
		return
	default:
	}
	if t.started || t.ended {
		return
	}
	t.started = true
	go t.run(voice)
}

func (t *Track) run(voice player.Voice) {
	defer t.finish()

	encoder, err := t.engine.newEncoder()
	if err != nil {
		t.log.Error().Err(err).Msg("encoder error")
		return
	}

	if err := voice.Speaking(true); err != nil {
		t.log.Warn().Err(err).Msg("failed to set speaking")
	}
	defer func() { _ = voice.Speaking(false) }()

	t.mu.Lock()
	offset := t.offset
	t.mu.Unlock()

	for {
		pcm, cleanup, err := t.engine.openPCM(t.src.link, offset)
		if err != nil {
			t.log.Error().Err(err).Msg("failed to start decoder")
			return
		}

		done := make(chan struct{})
		go func() {
			select {
			case <-t.stop:
				_ = pcm.Close()
			case <-done:
			}
		}()

		next, seeking, err := t.sendFrames(pcm, encoder, voice)
		close(done)
		_ = pcm.Close()
		cleanup()

		if err != nil && !isEOF(err) && !t.stopped() {
			t.log.Warn().Err(err).Msg("playback interrupted")
		}
		if !seeking {
			return
		}
		t.log.Debug().Dur("offset", next).Msg("seeking")
		t.mu.Lock()
		t.frames = 0
		t.mu.Unlock()
		offset = next
	}
}

func (t *Track) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
