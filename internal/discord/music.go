package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/music/media"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/resolver"
)

type playMode int

const (
	playAll playMode = iota
	playSingle
	playNext
)

// userMessage turns an error into text fit for a reply.
func userMessage(err error) string {
	switch {
	case errors.Is(err, player.ErrNotConnected):
		return "Not connected to a voice channel"
	case errors.Is(err, player.ErrAlreadyConnected):
		return "Already connected to a voice channel"
	case errors.Is(err, player.ErrNotPlaying):
		return "Nothing is playing"
	case errors.Is(err, player.ErrSeekOutOfRange):
		return "That position is outside the current track"
	case errors.Is(err, player.ErrPlaybackQueryFailed):
		return "Unable to read the playback position"
	case errors.Is(err, resolver.ErrNoResults):
		return "No results found"
	case errors.Is(err, context.DeadlineExceeded):
		return "Looking up the track took too long"
	case errors.Is(err, ErrUserNotInVoice), errors.Is(err, ErrWrongChannel):
		return err.Error()
	default:
		return fmt.Sprintf("Failed: %v", err)
	}
}

func (b *Bot) handleJoin(r *reply) error {
	channelID, err := b.FindUserVoiceState(r.guildID(), r.user().ID)
	if err != nil {
		return r.private(errorEmbed(userMessage(err)))
	}
	if err := r.ack(); err != nil {
		return err
	}
	if err := b.join(r.guildID(), channelID); err != nil {
		return r.public(errorEmbed(userMessage(err)))
	}
	return r.public(infoEmbed(fmt.Sprintf("Joined <#%s>", channelID)))
}

func (b *Bot) handleLeave(r *reply) error {
	if err := b.leave(r.guildID()); err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}
	return r.public(infoEmbed("Left voice channel"))
}

func (b *Bot) playHandler(mode playMode) handlerFunc {
	return func(r *reply) error {
		query := strings.TrimSpace(stringOption(r.options(), "query"))
		if query == "" {
			return r.private(errorEmbed("You didn't send anything"))
		}

		// Joining voice and yt-dlp both routinely outlast the response window.
		if err := r.ack(); err != nil {
			return err
		}

		user := r.user()
		if err := b.ensureVoice(r.guildID(), user.ID); err != nil {
			return r.public(errorEmbed(userMessage(err)))
		}

		embed, err := b.queue(r.guildID(), r.channelID(), user.ID, query, mode)
		if err != nil {
			b.log.Warn().Err(err).Str("guild", r.guildID()).Str("query", query).Msg("failed to queue")
			return r.public(errorEmbed(userMessage(err)))
		}
		return r.public(embed)
	}
}

// queue resolves query and hands the result to the guild's player.
func (b *Bot) queue(guildID, channelID, userID, query string, mode playMode) (*discordgo.MessageEmbed, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ResolveTimeout)
	defer cancel()

	notifier := b.notifiers.forChannel(channelID)

	if mode == playAll && b.resolver.IsPlaylistURL(query) {
		infos, err := b.resolver.ResolvePlaylist(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, errors.New("playlist is empty")
		}
		if err := b.registry.EnqueueBatch(guildID, infos, notifier); err != nil {
			return nil, err
		}
		return queuedPlaylistEmbed(infos), nil
	}

	info, err := b.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	author := "Queued song"
	if mode == playNext {
		author = "Playing next"
		err = b.registry.EnqueueNext(guildID, info, notifier)
	} else {
		err = b.registry.Enqueue(guildID, info, notifier)
	}
	if err != nil {
		return nil, err
	}

	if err := b.store.AddHistory(userID, info); err != nil {
		b.log.Warn().Err(err).Str("user", userID).Msg("failed to record history")
	}
	return queuedEmbed(info, author), nil
}

func (b *Bot) handleSkip(r *reply) error {
	if err := b.registry.Skip(r.guildID()); err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}
	return r.public(infoEmbed("Skipped"))
}

// parsePosition accepts plain seconds or a timestamp like 1:30 or 1:02:03.
func parsePosition(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, errors.New("position must not be negative")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if media.IsTimestamp(s) {
		return media.ParseTimestamp(s), nil
	}
	return 0, fmt.Errorf("%q is not a valid position", s)
}

func (b *Bot) handleSeek(r *reply) error {
	pos, err := parsePosition(stringOption(r.options(), "position"))
	if err != nil {
		return r.private(errorEmbed(err.Error()))
	}
	if err := b.registry.Seek(r.guildID(), pos); err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}
	return r.public(infoEmbed(fmt.Sprintf("Seeked to %s", media.FormatTimestamp(pos))))
}

func (b *Bot) handleQueue(r *reply) error {
	page := max(intOption(r.options(), "page", 1), 1)
	size := b.cfg.QueuePageSize
	offset := (page - 1) * size

	items, total, err := b.registry.ReadQueue(r.guildID(), offset, size)
	if err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}

	// When idle, row zero is a placeholder that still takes a slot.
	rows := total
	if np, err := b.registry.NowPlaying(r.guildID()); err == nil && np == nil {
		rows++
	}
	return r.public(queueEmbed(items, offset, page, pageCount(rows, size), total, b.cfg.QueueTextLength))
}

func (b *Bot) handleNowPlaying(r *reply) error {
	np, err := b.registry.NowPlaying(r.guildID())
	if err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}
	if np == nil {
		return r.private(infoEmbed("Nothing is playing"))
	}
	return r.public(nowPlayingEmbed(np.Info, np.Elapsed, b.cfg.ProgressBarLength))
}

func (b *Bot) handleTimestamps(r *reply) error {
	np, err := b.registry.NowPlaying(r.guildID())
	if err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}
	if np == nil {
		return r.private(infoEmbed("Nothing is playing"))
	}

	chapters := media.ParseChapters(np.Info.Description)
	n := intOption(r.options(), "chapter", 0)
	if n == 0 {
		return r.public(chaptersEmbed(np.Info, chapters, b.cfg.QueueTextLength))
	}

	if n > len(chapters) {
		return r.private(errorEmbed(fmt.Sprintf("There are only %d chapters", len(chapters))))
	}
	c := chapters[n-1]
	if err := b.registry.Seek(r.guildID(), c.At); err != nil {
		return r.private(warnEmbed(userMessage(err)))
	}
	return r.public(infoEmbed(fmt.Sprintf("Seeked to `%s` %s", c.Timestamp, escape(c.Label))))
}

func (b *Bot) voiceFlagHandler(apply func(*voiceSession), done, already string) handlerFunc {
	return func(r *reply) error {
		cur, ok := b.voices.get(r.guildID())
		if !ok {
			return r.private(warnEmbed("Not in a voice channel"))
		}

		next := cur
		apply(&next)
		if next.mute == cur.mute && next.deaf == cur.deaf {
			return r.private(warnEmbed(already))
		}

		if err := b.setVoiceFlags(r.guildID(), next.mute, next.deaf); err != nil {
			return r.private(errorEmbed(userMessage(err)))
		}
		return r.public(infoEmbed(done))
	}
}

func (b *Bot) handleHistory(r *reply) error {
	page := max(intOption(r.options(), "page", 1), 1)
	size := b.cfg.QueuePageSize
	offset := (page - 1) * size

	entries, total, err := b.store.History(r.user().ID, size, offset)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	return r.private(historyEmbed(entries, offset, page, pageCount(total, size), total, b.cfg.QueueTextLength))
}
