package discord

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/music/player"
)

var (
	ErrUserNotInVoice = errors.New("you are not in a voice channel")
	ErrWrongChannel   = errors.New("the bot is playing in another voice channel")
)

// voiceConn adapts a discordgo voice connection to player.Voice.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

var _ player.Voice = voiceConn{}

func (v voiceConn) Speaking(on bool) error { return v.vc.Speaking(on) }
func (v voiceConn) Frames() chan<- []byte  { return v.vc.OpusSend }

// voiceSession is the bot's own voice state in one guild.
type voiceSession struct {
	vc        *discordgo.VoiceConnection
	channelID string
	mute      bool
	deaf      bool
}

type voiceSessions struct {
	mu      sync.Mutex
	byGuild map[string]*voiceSession
	// joining serializes connect, disconnect and flag changes per guild.
	// discordgo hands every caller the same VoiceConnection for a guild.
	joining map[string]*sync.Mutex
}

func newVoiceSessions() *voiceSessions {
	return &voiceSessions{
		byGuild: make(map[string]*voiceSession),
		joining: make(map[string]*sync.Mutex),
	}
}

// lock takes the guild's join lock and returns its unlock.
func (v *voiceSessions) lock(guildID string) func() {
	v.mu.Lock()
	m, ok := v.joining[guildID]
	if !ok {
		m = &sync.Mutex{}
		v.joining[guildID] = m
	}
	v.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (v *voiceSessions) get(guildID string) (voiceSession, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.byGuild[guildID]
	if !ok {
		return voiceSession{}, false
	}
	return *s, true
}

func (v *voiceSessions) put(guildID string, s voiceSession) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byGuild[guildID] = &s
}

func (v *voiceSessions) remove(guildID string) (voiceSession, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.byGuild[guildID]
	if !ok {
		return voiceSession{}, false
	}
	delete(v.byGuild, guildID)
	return *s, true
}

// FindUserVoiceState returns the voice channel the user is sitting in.
func (b *Bot) FindUserVoiceState(guildID, userID string) (string, error) {
	vs, err := b.dg.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrUserNotInVoice
	}
	return vs.ChannelID, nil
}

// join connects to channelID and starts the guild's player on it.
func (b *Bot) join(guildID, channelID string) error {
	defer b.voices.lock(guildID)()
	return b.joinLocked(guildID, channelID)
}

func (b *Bot) joinLocked(guildID, channelID string) error {
	if b.registry.Connected(guildID) {
		return player.ErrAlreadyConnected
	}

	vc, err := b.joinVoice(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	if err := b.registry.Start(guildID, voiceConn{vc: vc}); err != nil {
		// Someone else's player owns this connection.
		if !errors.Is(err, player.ErrAlreadyConnected) {
			_ = vc.Disconnect()
		}
		return err
	}
	b.voices.put(guildID, voiceSession{vc: vc, channelID: channelID, deaf: true})

	b.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice")
	return nil
}

// ensureVoice joins the caller's channel unless the bot is already there.
func (b *Bot) ensureVoice(guildID, userID string) error {
	channelID, err := b.FindUserVoiceState(guildID, userID)
	if err != nil {
		return err
	}

	defer b.voices.lock(guildID)()
	if current, ok := b.voices.get(guildID); ok && b.registry.Connected(guildID) {
		if current.channelID != channelID {
			return ErrWrongChannel
		}
		return nil
	}
	return b.joinLocked(guildID, channelID)
}

// leave quits the guild's player and drops the voice connection.
func (b *Bot) leave(guildID string) error {
	defer b.voices.lock(guildID)()

	quitErr := b.registry.Quit(guildID)

	if s, ok := b.voices.remove(guildID); ok {
		if err := s.vc.Disconnect(); err != nil {
			b.log.Warn().Err(err).Str("guild", guildID).Msg("voice disconnect failed")
		}
	}
	if quitErr != nil {
		return quitErr
	}

	b.log.Info().Str("guild", guildID).Msg("left voice")
	return nil
}

// setVoiceFlags changes self-mute/deafen while staying in the same channel.
func (b *Bot) setVoiceFlags(guildID string, mute, deaf bool) error {
	defer b.voices.lock(guildID)()

	s, ok := b.voices.get(guildID)
	if !ok {
		return player.ErrNotConnected
	}

	if _, err := b.joinVoice(guildID, s.channelID, mute, deaf); err != nil {
		return fmt.Errorf("failed to update voice state: %w", err)
	}
	s.mute, s.deaf = mute, deaf
	b.voices.put(guildID, s)
	return nil
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}

	if v.ChannelID == "" {
		if err := b.registry.Quit(v.GuildID); err != nil && !errors.Is(err, player.ErrNotConnected) {
			b.log.Warn().Err(err).Str("guild", v.GuildID).Msg("failed to quit player after disconnect")
		}
		if _, ok := b.voices.remove(v.GuildID); ok {
			b.log.Info().Str("guild", v.GuildID).Msg("disconnected from voice")
		}
		return
	}

	if cur, ok := b.voices.get(v.GuildID); ok && cur.channelID != v.ChannelID {
		b.log.Info().Str("guild", v.GuildID).Str("channel", v.ChannelID).Msg("moved to another voice channel")
		cur.channelID = v.ChannelID
		b.voices.put(v.GuildID, cur)
	}
}
