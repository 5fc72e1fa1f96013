package player

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/media"
)

// GuildPlayer owns one guild's queue and the worker that plays it.
type GuildPlayer struct {
	guildID string
	engine  Engine
	voice   Voice
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	wake    *sync.Cond
	running bool
	current *playing
	queue   []Entry
}

type playing struct {
	track  Track
	handle Handle
}

// newGuildPlayer creates a player and starts its worker.
func newGuildPlayer(guildID string, engine Engine, voice Voice, logger zerolog.Logger) *GuildPlayer {
	ctx, cancel := context.WithCancel(context.Background())
	p := &GuildPlayer{
		guildID: guildID,
		engine:  engine,
		voice:   voice,
		log:     logger.With().Str("guild", guildID).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		running: true,
	}
	p.wake = sync.NewCond(&p.mu)

	go p.run()
	return p
}

// GuildID returns the guild this player belongs to.
func (p *GuildPlayer) GuildID() string { return p.guildID }

// Done is closed once the worker has exited.
func (p *GuildPlayer) Done() <-chan struct{} { return p.done }

// Enqueue adds a track to the end of the queue
func (p *GuildPlayer) Enqueue(info media.MediaInfo, n Notifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotConnected
	}
	t := newTrack(info, n)
	p.queue = append(p.queue, t)
	p.wake.Signal()

	p.log.Debug().Str("track", t.ID.String()).Str("title", info.Title).Int("queue_len", len(p.queue)).Msg("track enqueued")
	return nil
}

// EnqueueBatch adds tracks to the end of the queue, keeping their order.
func (p *GuildPlayer) EnqueueBatch(infos []media.MediaInfo, n Notifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotConnected
	}
	for _, info := range infos {
		p.queue = append(p.queue, newTrack(info, n))
	}
	p.wake.Signal()

	p.log.Debug().Int("added", len(infos)).Int("queue_len", len(p.queue)).Msg("batch enqueued")
	return nil
}

// EnqueueNext puts a track at the head of the queue so it plays right after
// the current one.
func (p *GuildPlayer) EnqueueNext(info media.MediaInfo, n Notifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotConnected
	}
	t := newTrack(info, n)
	p.queue = slices.Insert(p.queue, 0, Entry(t))
	p.wake.Signal()

	p.log.Debug().Str("track", t.ID.String()).Str("title", info.Title).Msg("track enqueued next")
	return nil
}

// Skip stops the current track. The worker moves on when the track's end
// callback fires.
func (p *GuildPlayer) Skip() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return
	}
	if err := p.current.handle.Stop(); err != nil {
		p.log.Warn().Err(err).Msg("failed to stop track on skip")
	}
}

// Seek moves the current track to pos.
func (p *GuildPlayer) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNotPlaying
	}
	if pos < 0 || pos >= p.current.track.Info.Duration {
		return ErrSeekOutOfRange
	}
	err := p.current.handle.Seek(pos)
	if errors.Is(err, ErrHandleEnded) {
		return ErrNotPlaying
	}
	return err
}

// NowPlaying returns the playing track and its position, or nil when idle.
func (p *GuildPlayer) NowPlaying() (*Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}
	pos, err := p.current.handle.Position()
	if errors.Is(err, ErrHandleEnded) {
		// Finished, the worker just hasn't moved on yet.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlaybackQueryFailed, err)
	}
	return &Playback{Info: p.current.track.Info, Elapsed: pos}, nil
}

// ReadQueue returns one page of the queue and the total number of rows.
// Page zero starts with the playing track, or an empty MediaInfo when idle.
func (p *GuildPlayer) ReadQueue(offset, limit int) ([]media.MediaInfo, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := make([]media.MediaInfo, 0, len(p.queue))
	for _, e := range p.queue {
		if t, ok := e.(Track); ok {
			pending = append(pending, t.Info)
		}
	}

	total := len(pending)
	if p.current != nil {
		total++
	}
	if limit <= 0 {
		return nil, total
	}
	if offset < 0 {
		offset = 0
	}

	items := make([]media.MediaInfo, 0, limit)
	start, remaining := offset-1, limit
	if offset == 0 {
		var now media.MediaInfo
		if p.current != nil {
			now = p.current.track.Info
		}
		items = append(items, now)
		start, remaining = 0, limit-1
	}

	for i := start; i < len(pending) && remaining > 0; i++ {
		items = append(items, pending[i])
		remaining--
	}
	return items, total
}

// quit stops the worker. It returns without waiting for it.
func (p *GuildPlayer) quit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	p.queue = append(p.queue, Shutdown{})
	p.wake.Signal()
	p.cancel()

	if p.current != nil {
		if err := p.current.handle.Stop(); err != nil {
			p.log.Warn().Err(err).Msg("failed to stop track on quit")
		}
	}
	p.log.Debug().Int("discarded", len(p.queue)-1).Msg("player quit requested")
}

// run is the worker loop. It plays queued tracks one at a time until quit.
func (p *GuildPlayer) run() {
	defer close(p.done)
	p.log.Debug().Msg("player worker started")
	defer p.log.Debug().Msg("player worker stopped")

	for {
		p.mu.Lock()
		for len(p.queue) == 0 {
			p.wake.Wait()
		}
		entry := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		running := p.running
		p.mu.Unlock()

		if !running {
			return
		}

		switch e := entry.(type) {
		case Shutdown:
			return
		case Track:
			if !p.play(e) {
				return
			}
		}
	}
}

// play runs one track to completion and reports whether the worker should
// keep going.
func (p *GuildPlayer) play(t Track) bool {
	log := p.log.With().Str("track", t.ID.String()).Str("title", t.Info.Title).Logger()

	src, err := p.engine.Open(p.ctx, t.Info.URL)
	if err != nil {
		if p.ctx.Err() != nil {
			return false
		}
		log.Warn().Err(err).Str("url", t.Info.URL).Msg("failed to open source")
		t.notify(fmt.Errorf("%w: %v", ErrSourceOpenFailed, err))
		return true
	}
	h := p.engine.Start(src)

	end := make(chan struct{})
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		_ = h.Stop()
		return false
	}
	if err := h.OnEnd(func() { close(end) }); err != nil {
		p.mu.Unlock()
		_ = h.Stop()
		log.Warn().Err(err).Msg("failed to register end handler")
		t.notify(fmt.Errorf("%w: %v", ErrEngineRegistrationFailed, err))
		return true
	}
	p.current = &playing{track: t, handle: h}
	p.mu.Unlock()

	log.Info().Msg("playing")
	p.engine.Play(p.voice, h)
	<-end

	p.mu.Lock()
	p.current = nil
	running := p.running
	p.mu.Unlock()

	log.Debug().Msg("track ended")
	return running
}
