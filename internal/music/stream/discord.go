package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/keshon/jukebox/internal/music/player"
)

// sendFrames encodes PCM from stream into Opus frames on voice until the
// stream ends, the track is stopped or a seek arrives. It reports the seek
// target when it returned because of one.
func (t *Track) sendFrames(stream io.Reader, encoder frameEncoder, voice player.Voice) (seekTo time.Duration, seeking bool, err error) {
	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)
	out := voice.Frames()

	for {
		select {
		case <-t.stop:
			return 0, false, nil
		case pos := <-t.seek:
			return pos, true, nil
		default:
		}

		if _, err := io.ReadFull(stream, pcmBuf); err != nil {
			return 0, false, fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return 0, false, fmt.Errorf("encode error: %w", err)
		}

		select {
		case out <- opus:
			t.advance()
		case <-t.stop:
			return 0, false, nil
		case pos := <-t.seek:
			return pos, true, nil
		}
	}
}
