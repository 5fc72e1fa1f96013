package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/media"
)

const waitTimeout = 2 * time.Second

var errOpen = errors.New("open failed")

type fakeHandle struct {
	url string

	mu        sync.Mutex
	ended     bool
	onEnd     func()
	failOnEnd bool
	pos       time.Duration
	posErr    error
	seeks     []time.Duration
}

func (h *fakeHandle) Stop() error {
	h.finish()
	return nil
}

func (h *fakeHandle) Seek(pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrHandleEnded
	}
	h.seeks = append(h.seeks, pos)
	h.pos = pos
	return nil
}

func (h *fakeHandle) Position() (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return 0, ErrHandleEnded
	}
	return h.pos, h.posErr
}

func (h *fakeHandle) OnEnd(fn func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failOnEnd {
		return errors.New("no events")
	}
	if h.ended {
		return errors.New("already ended")
	}
	h.onEnd = fn
	return nil
}

// finish simulates the track running out.
func (h *fakeHandle) finish() {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return
	}
	h.ended = true
	fn := h.onEnd
	h.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (h *fakeHandle) isEnded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ended
}

type fakeVoice struct {
	played chan *fakeHandle
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{played: make(chan *fakeHandle, 64)}
}

func (v *fakeVoice) Speaking(bool) error   { return nil }
func (v *fakeVoice) Frames() chan<- []byte { return nil }

// next returns the next track handed to the engine for playback.
func (v *fakeVoice) next(t *testing.T) *fakeHandle {
	t.Helper()
	select {
	case h := <-v.played:
		return h
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a track to play")
		return nil
	}
}

func (v *fakeVoice) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case h := <-v.played:
		t.Fatalf("unexpected track played: %s", h.url)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeEngine struct {
	mu        sync.Mutex
	failOpen  map[string]bool
	failOnEnd map[string]bool
	blockOpen map[string]bool
	started   []*fakeHandle
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		failOpen:  map[string]bool{},
		failOnEnd: map[string]bool{},
		blockOpen: map[string]bool{},
	}
}

func (e *fakeEngine) Open(ctx context.Context, url string) (Source, error) {
	e.mu.Lock()
	fail, block := e.failOpen[url], e.blockOpen[url]
	e.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errOpen
	}
	return url, nil
}

func (e *fakeEngine) Start(src Source) Handle {
	url := src.(string)
	e.mu.Lock()
	defer e.mu.Unlock()
	h := &fakeHandle{url: url, failOnEnd: e.failOnEnd[url]}
	e.started = append(e.started, h)
	return h
}

func (e *fakeEngine) Play(voice Voice, h Handle) {
	voice.(*fakeVoice).played <- h.(*fakeHandle)
}

type failure struct {
	info media.MediaInfo
	err  error
}

type fakeNotifier struct {
	failures chan failure
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failures: make(chan failure, 16)}
}

func (n *fakeNotifier) TrackFailed(info media.MediaInfo, err error) {
	n.failures <- failure{info: info, err: err}
}

func (n *fakeNotifier) next(t *testing.T) failure {
	t.Helper()
	select {
	case f := <-n.failures:
		return f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a failure notification")
		return failure{}
	}
}

func track(url string) media.MediaInfo {
	return media.MediaInfo{URL: url, Title: "title " + url, Duration: 3 * time.Minute}
}

func newTestRegistry(engine Engine) *Registry {
	return NewRegistry(engine, zerolog.Nop())
}

func waitDone(t *testing.T, p *GuildPlayer) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit")
	}
}
