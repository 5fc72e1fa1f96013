// cmd/cli/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/media"
	"github.com/keshon/jukebox/internal/music/resolver"
	"github.com/keshon/jukebox/internal/storage"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	dimColor   = color.New(color.FgHiBlack)
	errorColor = color.New(color.FgRed)
)

type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           config.AppName + "-cli",
		Short:         "Inspect tracks and stored listening data without starting the bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewOffline()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
			return nil
		},
	}
	root.AddCommand(a.resolveCmd(), a.timestampsCmd(), a.historyCmd(), a.playlistsCmd())

	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) resolver() *resolver.Resolver {
	return resolver.New(resolver.Options{
		Proxy:   a.cfg.YouTubeProxy,
		Timeout: a.cfg.ResolveTimeout,
		Logger:  a.log,
	})
}

func (a *app) openStore() (storage.Store, error) {
	return storage.Open(a.cfg.StorageDriver, a.cfg.StoragePath, a.log)
}

func (a *app) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <query or url>",
		Short: "Look up a track or playlist the way /play would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.ResolveTimeout)
			defer cancel()

			r := a.resolver()
			if r.IsPlaylistURL(query) {
				infos, err := r.ResolvePlaylist(ctx, query)
				if err != nil {
					return err
				}
				for i, info := range infos {
					printTrack(i+1, info)
				}
				return nil
			}

			info, err := r.Resolve(ctx, query)
			if err != nil {
				return err
			}
			printTrack(0, info)
			return nil
		},
	}
}

func (a *app) timestampsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timestamps <query or url>",
		Short: "List the chapters found in a track description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.ResolveTimeout)
			defer cancel()

			info, err := a.resolver().Resolve(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			titleColor.Println(info.Title)

			chapters := media.ParseChapters(info.Description)
			if len(chapters) == 0 {
				dimColor.Println("no timestamps in the description")
				return nil
			}
			for i, c := range chapters {
				fmt.Printf("%3d) %8s  %s\n", i+1, c.Timestamp, c.Label)
			}
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "history <user id>",
		Short: "Show a user's recently queued tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			size := a.cfg.QueuePageSize
			offset := (max(page, 1) - 1) * size
			entries, total, err := store.History(args[0], size, offset)
			if err != nil {
				return err
			}
			for i, e := range entries {
				printTrack(offset+i+1, e.Info)
				dimColor.Printf("     %s\n", e.PlayedAt.Format("2006-01-02 15:04"))
			}
			dimColor.Printf("%d of %d entries\n", len(entries), total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func (a *app) playlistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists <user id> [name]",
		Short: "List a user's playlists, or the tracks of one of them",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 2 {
				tracks, err := store.Playlist(args[0], args[1])
				if err != nil {
					return err
				}
				titleColor.Println(args[1])
				for i, t := range tracks {
					printTrack(i+1, t)
				}
				return nil
			}

			names, err := store.Playlists(args[0])
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func printTrack(n int, info media.MediaInfo) {
	if n > 0 {
		fmt.Printf("%3d) ", n)
	}
	titleColor.Print(info.Title)
	fmt.Printf(" (%s)\n", media.FormatTimestamp(info.Duration))
	dimColor.Printf("     %s\n", info.URL)
}
