package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "github.com/bdandy/go-socks4"
	"github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"golang.org/x/net/proxy"

	"github.com/keshon/jukebox/internal/music/media"
)

// linkFinder turns a page URL into a direct media link ffmpeg can read.
type linkFinder interface {
	Name() string
	Supports(url string) bool
	StreamURL(ctx context.Context, url string) (string, error)
}

type ytdlpFinder struct {
	proxy string
}

func (f *ytdlpFinder) Name() string         { return "ytdlp" }
func (f *ytdlpFinder) Supports(string) bool { return true }

func (f *ytdlpFinder) StreamURL(ctx context.Context, u string) (string, error) {
	cmd := ytdlp.New().
		Format("bestaudio/best").
		Print("%(url)s").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if f.proxy != "" {
		cmd.Proxy(f.proxy)
	}

	res, err := cmd.Run(ctx, "--skip-download", u)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return "", err
	}
	return firstLink(res.Stdout)
}

func firstLink(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if media.IsURL(line) {
			return line, nil
		}
	}
	return "", errors.New("no stream link in yt-dlp output")
}

type kkdaiFinder struct {
	client *youtube.Client
}

func (f *kkdaiFinder) Name() string           { return "kkdai" }
func (f *kkdaiFinder) Supports(u string) bool { return media.IsYouTubeURL(u) }

func (f *kkdaiFinder) StreamURL(ctx context.Context, u string) (string, error) {
	id, err := media.YouTubeID(u)
	if err != nil {
		return "", err
	}

	video, err := f.client.GetVideoContext(ctx, id)
	if err != nil {
		return "", fmt.Errorf("youtube client error: %w", err)
	}

	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return "", errors.New("no audio formats found for video")
	}

	link, err := f.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("get stream URL error: %w", err)
	}
	return link, nil
}

// newYouTubeClient builds a kkdai client, routed through proxyStr when set.
// http(s), socks5 and socks4 proxies are supported. On a bad proxy the
// returned client goes direct and the error says why.
func newYouTubeClient(proxyStr string) (*youtube.Client, error) {
	direct := &youtube.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	if proxyStr == "" {
		return direct, nil
	}

	transport, err := proxyTransport(proxyStr)
	if err != nil {
		return direct, err
	}
	return &youtube.Client{
		HTTPClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}, nil
}

func proxyTransport(proxyStr string) (*http.Transport, error) {
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy format: %w", err)
	}

	var dialer proxy.Dialer
	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			auth.Password, _ = proxyURL.User.Password()
		}
		dialer, err = proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
	case "socks4", "socks4a":
		dialer, err = proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%s dialer error: %w", proxyURL.Scheme, err)
	}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}, nil
}
