// Package resolver turns search queries and links into track metadata using
// yt-dlp.
package resolver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/media"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

var ErrNoResults = errors.New("no results found")

const defaultAttempts = 3

// runFunc executes a yt-dlp command and returns its stdout.
type runFunc func(ctx context.Context, cmd *ytdlp.Command, args ...string) (string, error)

// Options configures a Resolver.
type Options struct {
	Proxy   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Resolver looks up track metadata. Safe for concurrent use.
type Resolver struct {
	proxy    string
	timeout  time.Duration
	attempts int
	limiter  *retrylimit.AdaptiveLimiter
	log      zerolog.Logger
	run      runFunc
}

// New creates a Resolver backed by the yt-dlp binary on PATH.
func New(opts Options) *Resolver {
	return &Resolver{
		proxy:    opts.Proxy,
		timeout:  opts.Timeout,
		attempts: defaultAttempts,
		limiter:  retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		log:      logging.Component(opts.Logger, "resolver"),
		run:      runYtdlp,
	}
}

// IsPlaylistURL reports whether url should be expanded with ResolvePlaylist.
func (r *Resolver) IsPlaylistURL(url string) bool {
	return media.IsPlaylistURL(url)
}

// Resolve returns the metadata of a single track. Anything that is not a
// link is treated as a search and resolves to the first hit.
func (r *Resolver) Resolve(ctx context.Context, query string) (media.MediaInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return media.MediaInfo{}, ErrNoResults
	}

	target := "ytsearch1:" + query
	if media.IsURL(query) {
		target = media.CleanVideoURL(query)
	}

	entries, err := r.dump(ctx, r.command().NoPlaylist(), target)
	if err != nil {
		return media.MediaInfo{}, fmt.Errorf("failed to resolve %q: %w", query, err)
	}
	if len(entries) == 0 {
		return media.MediaInfo{}, ErrNoResults
	}

	info := entries[0].mediaInfo()
	r.log.Debug().Str("query", query).Str("title", info.Title).Msg("resolved")
	return info, nil
}

// ResolvePlaylist returns every track of a playlist in playlist order. The
// first track is resolved fully so it can start right away; the rest come
// from a flat listing.
func (r *Resolver) ResolvePlaylist(ctx context.Context, url string) ([]media.MediaInfo, error) {
	first, err := r.dump(ctx, r.command().PlaylistItems("1"), url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist %q: %w", url, err)
	}
	if len(first) == 0 {
		return nil, ErrNoResults
	}

	rest, err := r.dump(ctx, r.command().FlatPlaylist().PlaylistItems("2:"), url)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist %q: %w", url, err)
	}

	list := first[0].playlistInfo()
	infos := make([]media.MediaInfo, 0, len(rest)+1)
	infos = append(infos, first[0].mediaInfo().WithPlaylist(list))
	for _, e := range rest {
		info := e.mediaInfo()
		if info.URL == "" {
			continue
		}
		infos = append(infos, info.WithPlaylist(list))
	}

	r.log.Debug().Str("url", url).Str("playlist", list.Title).Int("tracks", len(infos)).Msg("resolved playlist")
	return infos, nil
}

func (r *Resolver) command() *ytdlp.Command {
	cmd := ytdlp.New().
		IgnoreConfig().
		NoWarnings()
	if r.proxy != "" {
		cmd.Proxy(r.proxy)
	}
	return cmd
}

// dump runs cmd with --dump-json and decodes one entry per output line.
func (r *Resolver) dump(ctx context.Context, cmd *ytdlp.Command, target string) ([]entry, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var entries []entry
	err := retrylimit.WithRetryMax(ctx, func() error {
		out, err := r.run(ctx, cmd, "--dump-json", target)
		if err != nil {
			return err
		}
		entries, err = decodeEntries(out)
		return retrylimit.Fatal(err)
	}, r.limiter, r.attempts)
	return entries, err
}

func runYtdlp(ctx context.Context, cmd *ytdlp.Command, args ...string) (string, error) {
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return "", err
	}
	return res.Stdout, nil
}

// entry is the subset of yt-dlp's info JSON we use. Flat playlist entries
// only fill id, url, ie_key, title, duration and uploader.
type entry struct {
	ID               string  `json:"id"`
	URL              string  `json:"url"`
	WebpageURL       string  `json:"webpage_url"`
	IEKey            string  `json:"ie_key"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Duration         float64 `json:"duration"`
	Thumbnail        string  `json:"thumbnail"`
	Uploader         string  `json:"uploader"`
	Channel          string  `json:"channel"`
	PlaylistTitle    string  `json:"playlist_title"`
	PlaylistUploader string  `json:"playlist_uploader"`
	Thumbnails       []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

func decodeEntries(out string) ([]entry, error) {
	var entries []entry
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("malformed yt-dlp output: %w", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read yt-dlp output: %w", err)
	}
	return entries, nil
}

func (e entry) link() string {
	switch {
	case e.WebpageURL != "":
		return e.WebpageURL
	case e.IEKey == "Youtube" && e.ID != "":
		return media.YouTubeWatchURL(e.ID)
	default:
		return e.URL
	}
}

func (e entry) mediaInfo() media.MediaInfo {
	thumb := e.Thumbnail
	if thumb == "" && len(e.Thumbnails) > 0 {
		thumb = e.Thumbnails[len(e.Thumbnails)-1].URL
	}
	uploader := e.Uploader
	if uploader == "" {
		uploader = e.Channel
	}
	return media.MediaInfo{
		URL:         e.link(),
		Title:       e.Title,
		Duration:    time.Duration(e.Duration * float64(time.Second)),
		Description: e.Description,
		Thumbnail:   thumb,
		Uploader:    uploader,
	}
}

func (e entry) playlistInfo() media.PlaylistInfo {
	return media.PlaylistInfo{Title: e.PlaylistTitle, Uploader: e.PlaylistUploader}
}
