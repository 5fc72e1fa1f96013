// Package stream plays tracks into a voice connection: it finds a direct
// audio link, decodes it with ffmpeg and sends Opus frames.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"layeh.com/gopus"

	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/player"
)

const (
	channels      = 2
	sampleRate    = 48000
	frameSize     = 960 // 20ms at 48kHz
	frameDuration = 20 * time.Millisecond
)

// pcmOpener starts decoding link from offset into s16le PCM. cleanup must be
// safe to call more than once.
type pcmOpener func(link string, offset time.Duration) (pcm io.ReadCloser, cleanup func(), err error)

type frameEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// Options configures an Engine.
type Options struct {
	Proxy  string
	Logger zerolog.Logger
}

// Engine implements player.Engine.
type Engine struct {
	finders    []linkFinder
	openPCM    pcmOpener
	newEncoder func() (frameEncoder, error)
	log        zerolog.Logger
}

var _ player.Engine = (*Engine)(nil)

// New creates an Engine that looks links up with yt-dlp and falls back to
// the kkdai YouTube client.
func New(opts Options) *Engine {
	log := logging.Component(opts.Logger, "stream")

	yt, err := newYouTubeClient(opts.Proxy)
	if err != nil {
		log.Warn().Err(err).Msg("proxy unusable, kkdai client goes direct")
	}

	return &Engine{
		finders: []linkFinder{
			&ytdlpFinder{proxy: opts.Proxy},
			&kkdaiFinder{client: yt},
		},
		openPCM: openFFmpeg,
		newEncoder: func() (frameEncoder, error) {
			return gopus.NewEncoder(sampleRate, channels, gopus.Audio)
		},
		log: log,
	}
}

// source is what Open hands back to the player.
type source struct {
	url  string
	link string
	via  string
}

// Open finds a playable audio link for url, trying each finder in order.
func (e *Engine) Open(ctx context.Context, url string) (player.Source, error) {
	var errs []error
	for _, f := range e.finders {
		if !f.Supports(url) {
			continue
		}
		link, err := f.StreamURL(ctx, url)
		if err == nil {
			e.log.Debug().Str("url", url).Str("via", f.Name()).Msg("stream link found")
			return &source{url: url, link: link, via: f.Name()}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.Warn().Err(err).Str("url", url).Str("via", f.Name()).Msg("stream link lookup failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no stream finder supports %q", url)
	}
	return nil, errors.Join(errs...)
}

// Start wraps an opened source in a Track. Nothing is decoded until Play.
func (e *Engine) Start(src player.Source) player.Handle {
	s, ok := src.(*source)
	if !ok {
		panic(fmt.Sprintf("stream: foreign source %T", src))
	}
	return newTrack(e, s)
}

// Play starts sending the track to voice. It returns immediately.
func (e *Engine) Play(voice player.Voice, h player.Handle) {
	t, ok := h.(*Track)
	if !ok {
		e.log.Error().Msgf("cannot play foreign handle %T", h)
		_ = h.Stop()
		return
	}
	t.play(voice)
}
