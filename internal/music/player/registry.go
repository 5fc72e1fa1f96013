package player

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/media"
)

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Init installs the process-wide registry. Calling it twice is a startup
// bug and panics.
func Init(engine Engine, logger zerolog.Logger) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry != nil {
		panic("player: registry initialized twice")
	}
	defaultRegistry = NewRegistry(engine, logger)
	return defaultRegistry
}

// Default returns the registry installed by Init.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		panic("player: registry used before Init")
	}
	return defaultRegistry
}

// Registry maps guild IDs to their players. Its lock only guards the map
// and is never held while a player does any work.
type Registry struct {
	engine Engine
	log    zerolog.Logger

	mu      sync.RWMutex
	players map[string]*GuildPlayer
}

// NewRegistry creates an empty registry.
func NewRegistry(engine Engine, logger zerolog.Logger) *Registry {
	return &Registry{
		engine:  engine,
		log:     logging.Component(logger, "player"),
		players: make(map[string]*GuildPlayer),
	}
}

// Start creates the guild's player bound to voice and starts its worker.
func (r *Registry) Start(guildID string, voice Voice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[guildID]; ok {
		return ErrAlreadyConnected
	}
	r.players[guildID] = newGuildPlayer(guildID, r.engine, voice, r.log)

	r.log.Info().Str("guild", guildID).Msg("player started")
	return nil
}

// Quit removes the guild's player and asks it to stop. Queued tracks are
// dropped.
func (r *Registry) Quit(guildID string) error {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()

	if !ok {
		return ErrNotConnected
	}
	p.quit()

	r.log.Info().Str("guild", guildID).Msg("player quit")
	return nil
}

// Shutdown quits every player and waits for their workers until ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	players := lo.Values(r.players)
	r.players = make(map[string]*GuildPlayer)
	r.mu.Unlock()

	for _, p := range players {
		p.quit()
	}
	for _, p := range players {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Connected reports whether the guild has a player.
func (r *Registry) Connected(guildID string) bool {
	_, err := r.get(guildID)
	return err == nil
}

// Guilds lists the guilds with a player, sorted.
func (r *Registry) Guilds() []string {
	r.mu.RLock()
	ids := lo.Keys(r.players)
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) get(guildID string) (*GuildPlayer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[guildID]
	if !ok {
		return nil, ErrNotConnected
	}
	return p, nil
}

func (r *Registry) Skip(guildID string) error {
	p, err := r.get(guildID)
	if err != nil {
		return err
	}
	p.Skip()
	return nil
}

func (r *Registry) Seek(guildID string, pos time.Duration) error {
	p, err := r.get(guildID)
	if err != nil {
		return err
	}
	return p.Seek(pos)
}

func (r *Registry) ReadQueue(guildID string, offset, limit int) ([]media.MediaInfo, int, error) {
	p, err := r.get(guildID)
	if err != nil {
		return nil, 0, err
	}
	items, total := p.ReadQueue(offset, limit)
	return items, total, nil
}

func (r *Registry) NowPlaying(guildID string) (*Playback, error) {
	p, err := r.get(guildID)
	if err != nil {
		return nil, err
	}
	return p.NowPlaying()
}

func (r *Registry) Enqueue(guildID string, info media.MediaInfo, n Notifier) error {
	p, err := r.get(guildID)
	if err != nil {
		return err
	}
	return p.Enqueue(info, n)
}

func (r *Registry) EnqueueBatch(guildID string, infos []media.MediaInfo, n Notifier) error {
	p, err := r.get(guildID)
	if err != nil {
		return err
	}
	return p.EnqueueBatch(infos, n)
}

func (r *Registry) EnqueueNext(guildID string, info media.MediaInfo, n Notifier) error {
	p, err := r.get(guildID)
	if err != nil {
		return err
	}
	return p.EnqueueNext(info, n)
}
