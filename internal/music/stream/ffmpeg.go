package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

func ffmpegArgs(link string, offset time.Duration) []string {
	return []string{
		"-ss", fmt.Sprintf("%.3f", offset.Seconds()),
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

func openFFmpeg(link string, offset time.Duration) (io.ReadCloser, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(link, offset)...)

	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			cancel()
			_ = cmd.Wait()
		})
	}
	return out, cleanup, nil
}
