// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/resolver"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/storage"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fallback := logging.New(logging.Options{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log.Info().Str("app", config.AppName).Msg("starting bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(cfg.StorageDriver, cfg.StoragePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	res := resolver.New(resolver.Options{
		Proxy:   cfg.YouTubeProxy,
		Timeout: cfg.ResolveTimeout,
		Logger:  log,
	})
	engine := stream.New(stream.Options{
		Proxy:  cfg.YouTubeProxy,
		Logger: log,
	})
	registry := player.Init(engine, log)

	errCh := make(chan error, 1)
	go func() {
		if err := discord.StartBot(ctx, discord.Deps{
			Config:   cfg,
			Store:    store,
			Resolver: res,
			Registry: registry,
			Logger:   log,
		}); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		// Let the bot leave its voice channels before the players are torn down.
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("discord bot error")
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("players did not stop in time")
	}

	log.Info().Msg("discord bot exited cleanly")
}
