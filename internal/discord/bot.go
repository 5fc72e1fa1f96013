package discord

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/media"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/parallel"
)

// trackResolver turns user queries into track metadata.
type trackResolver interface {
	IsPlaylistURL(url string) bool
	Resolve(ctx context.Context, query string) (media.MediaInfo, error)
	ResolvePlaylist(ctx context.Context, url string) ([]media.MediaInfo, error)
}

// guildWorkers bounds how many guilds are set up or torn down at once.
const guildWorkers = 4

// Deps are the services the bot drives.
type Deps struct {
	Config   *config.Config
	Store    storage.Store
	Resolver trackResolver
	Registry *player.Registry
	Logger   zerolog.Logger
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	store    storage.Store
	resolver trackResolver
	registry *player.Registry
	log      zerolog.Logger

	voices      *voiceSessions
	notifiers   *notifiers
	commands    commandCache
	commandRate *rate.Limiter
	handle      map[string]handlerFunc

	// joinVoice is dg.ChannelVoiceJoin outside of tests.
	joinVoice func(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// StartBot runs the Discord bot until ctx is cancelled.
func StartBot(ctx context.Context, deps Deps) error {
	b := newBot(deps)
	if err := b.run(ctx, deps.Config.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func newBot(deps Deps) *Bot {
	log := logging.Component(deps.Logger, "discord")
	b := &Bot{
		cfg:      deps.Config,
		store:    deps.Store,
		resolver: deps.Resolver,
		registry: deps.Registry,
		log:      log,
		voices:   newVoiceSessions(),
		commands: commandCache{dir: filepath.Join(filepath.Dir(deps.Config.StoragePath), "commands")},
		// Shared by every guild so parallel registration stays under
		// Discord's global request limit.
		commandRate: rate.NewLimiter(40, 1),
	}
	b.notifiers = newNotifiers(b.sendEmbed, deps.Config.NotifyRate, log)
	b.handle = b.handlers()
	return b
}

// run starts the Discord bot
func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg
	if b.joinVoice == nil {
		b.joinVoice = dg.ChannelVoiceJoin
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, leaving voice channels")
	_ = parallel.ForEach(context.Background(), b.registry.Guilds(), guildWorkers, func(_ context.Context, guildID string) error {
		if err := b.leave(guildID); err != nil && !errors.Is(err, player.ErrNotConnected) {
			b.log.Warn().Err(err).Str("guild", guildID).Msg("failed to leave voice")
		}
		return nil
	})
	return nil
}

func (b *Bot) sendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := b.dg.ChannelMessageSendEmbed(channelID, embed)
	return err
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	err := parallel.ForEach(context.Background(), r.Guilds, guildWorkers, func(_ context.Context, g *discordgo.Guild) error {
		if b.leaveIfBlacklisted(s, g.ID, g.Name) {
			return nil
		}
		if err := b.registerCommands(g.ID); err != nil {
			return fmt.Errorf("guild %s: %w", g.ID, err)
		}
		return nil
	})
	if err != nil {
		b.log.Error().Err(err).Msg("error registering slash commands")
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

// onGuildCreate is called when the bot joins a guild or one becomes available
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID, g.Name) {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register commands for guild")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID, name string) bool {
	if !b.cfg.IsGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Str("name", name).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	return true
}

// onInteractionCreate is called when an interaction is created
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	h, ok := b.handle[name]
	if !ok {
		b.log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	user := invoker(i)
	log := b.log.With().Str("command", name).Str("guild", i.GuildID).Str("user", user.ID).Logger()
	r := newReply(s, i, log)
	if i.GuildID == "" {
		_ = r.private(errorEmbed("This command only works in a server."))
		return
	}
	log.Debug().Msg("running command")

	start := time.Now()
	if err := h(r); err != nil {
		log.Error().Err(err).Msg("error running slash command")
		_ = r.private(errorEmbed(fmt.Sprintf("Error running command: %v", err)))
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("command done")
}

// registerCommands pushes changed command definitions to one guild and
// deletes ones that no longer exist.
func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	existing, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}
	localHashes := b.commands.load(guildID)

	wanted := commandDefinitions()
	wantedHashes := make(map[string]string, len(wanted))
	for _, def := range wanted {
		if def.Type == 0 {
			def.Type = discordgo.ChatApplicationCommand
		}
		wantedHashes[def.Name] = hashCommand(def)
	}

	registered := make(map[string]bool, len(existing))
	for _, old := range existing {
		if _, ok := wantedHashes[old.Name]; ok {
			registered[old.Name] = true
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", old.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, old.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", old.Name).Msg("failed to delete command")
		}
		delete(localHashes, old.Name)
	}

	var changed []*discordgo.ApplicationCommand
	for _, def := range wanted {
		if !registered[def.Name] || localHashes[def.Name] != wantedHashes[def.Name] {
			changed = append(changed, def)
		}
	}

	if len(changed) > 0 {
		b.log.Info().Str("guild", guildID).Int("changed", len(changed)).Msg("updating commands")
		for _, def := range b.createCommands(appID, guildID, changed) {
			localHashes[def] = wantedHashes[def]
		}
	}

	return b.commands.save(guildID, localHashes)
}

// createCommands registers cmds, sharing one rate limit across guilds, and
// returns the names that succeeded.
func (b *Bot) createCommands(appID, guildID string, cmds []*discordgo.ApplicationCommand) []string {
	var (
		mu   sync.Mutex
		done []string
		wg   sync.WaitGroup
	)
	for _, cmd := range cmds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.commandRate.Wait(context.Background()); err != nil {
				return
			}

			if _, err := b.dg.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
				b.log.Error().Err(err).Str("command", cmd.Name).Msg("can't create command")
				return
			}
			mu.Lock()
			done = append(done, cmd.Name)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return done
}
