package discord

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/keshon/jukebox/internal/music/media"
	"github.com/keshon/jukebox/internal/music/player"
)

type sendEmbedFunc func(channelID string, embed *discordgo.MessageEmbed) error

// notifiers hands out one throttled notifier per text channel, so a
// playlist full of broken links cannot flood the channel.
type notifiers struct {
	mu     sync.Mutex
	byChan map[string]*channelNotifier
	send   sendEmbedFunc
	limit  rate.Limit
	burst  int
	log    zerolog.Logger
}

func newNotifiers(send sendEmbedFunc, perSecond float64, log zerolog.Logger) *notifiers {
	return &notifiers{
		byChan: make(map[string]*channelNotifier),
		send:   send,
		limit:  rate.Limit(perSecond),
		burst:  3,
		log:    log,
	}
}

func (n *notifiers) forChannel(channelID string) *channelNotifier {
	n.mu.Lock()
	defer n.mu.Unlock()

	if c, ok := n.byChan[channelID]; ok {
		return c
	}
	c := &channelNotifier{
		channelID: channelID,
		limiter:   rate.NewLimiter(n.limit, n.burst),
		send:      n.send,
		log:       n.log.With().Str("channel", channelID).Logger(),
	}
	n.byChan[channelID] = c
	return c
}

type channelNotifier struct {
	channelID string
	limiter   *rate.Limiter
	send      sendEmbedFunc
	log       zerolog.Logger
}

var _ player.Notifier = (*channelNotifier)(nil)

func (c *channelNotifier) TrackFailed(info media.MediaInfo, err error) {
	c.log.Warn().Err(err).Str("url", info.URL).Msg("track failed")

	if !c.limiter.Allow() {
		c.log.Debug().Str("url", info.URL).Msg("failure notice throttled")
		return
	}

	msg := fmt.Sprintf("Error playing track: %s", trackFailureReason(err))
	if info.Title != "" {
		msg = fmt.Sprintf("%s\n%s", msg, trackLink(info, 100))
	}
	if err := c.send(c.channelID, errorEmbed(msg)); err != nil {
		c.log.Error().Err(err).Msg("failed to send failure notice")
	}
}

func trackFailureReason(err error) string {
	switch {
	case errors.Is(err, player.ErrSourceOpenFailed):
		return player.ErrSourceOpenFailed.Error()
	case errors.Is(err, player.ErrEngineRegistrationFailed):
		return player.ErrEngineRegistrationFailed.Error()
	default:
		return err.Error()
	}
}
