package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/storage"
)

func playlistMessage(err error) string {
	switch {
	case errors.Is(err, storage.ErrPlaylistExists):
		return "A playlist with that name already exists"
	case errors.Is(err, storage.ErrPlaylistNotFound):
		return "No playlist with that name"
	case errors.Is(err, storage.ErrTrackNotFound):
		return "That song is not in the playlist"
	case errors.Is(err, storage.ErrInvalidName):
		return "Playlist name must not be empty"
	default:
		return userMessage(err)
	}
}

func (b *Bot) handlePlaylist(r *reply) error {
	data := r.i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return r.private(errorEmbed("Missing subcommand."))
	}

	sub := data.Options[0]
	opts := options(sub.Options)
	userID := r.user().ID
	name := stringOption(opts, "name")

	switch sub.Name {
	case "create":
		if err := b.store.CreatePlaylist(userID, name); err != nil {
			return r.private(warnEmbed(playlistMessage(err)))
		}
		return r.private(infoEmbed(fmt.Sprintf("Created playlist **%s**", escape(name))))

	case "delete":
		if err := b.store.DeletePlaylist(userID, name); err != nil {
			return r.private(warnEmbed(playlistMessage(err)))
		}
		return r.private(infoEmbed(fmt.Sprintf("Deleted playlist **%s**", escape(name))))

	case "list":
		names, err := b.store.Playlists(userID)
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		if len(names) == 0 {
			return r.private(infoEmbed("You have no playlists yet"))
		}
		lines := make([]string, len(names))
		for n, pl := range names {
			lines[n] = fmt.Sprintf("**%d)** %s", n+1, escape(pl))
		}
		return r.private(&discordgo.MessageEmbed{
			Title:       "Playlists",
			Description: strings.Join(lines, "\n"),
			Color:       colorHistory,
		})

	case "show":
		tracks, err := b.store.Playlist(userID, name)
		if err != nil {
			return r.private(warnEmbed(playlistMessage(err)))
		}
		return r.private(playlistEmbed(name, tracks, b.cfg.QueueTextLength))

	case "add":
		np, err := b.registry.NowPlaying(r.guildID())
		if err != nil {
			return r.private(warnEmbed(userMessage(err)))
		}
		if np == nil {
			return r.private(warnEmbed("Nothing is playing"))
		}
		if err := b.store.AddToPlaylist(userID, name, np.Info); err != nil {
			return r.private(warnEmbed(playlistMessage(err)))
		}
		return r.private(infoEmbed(fmt.Sprintf("Added %s to **%s**", trackLink(np.Info, b.cfg.QueueTextLength), escape(name))))

	case "remove":
		if err := b.store.RemoveFromPlaylist(userID, name, stringOption(opts, "url")); err != nil {
			return r.private(warnEmbed(playlistMessage(err)))
		}
		return r.private(infoEmbed(fmt.Sprintf("Removed from **%s**", escape(name))))

	case "play":
		return b.playSavedPlaylist(r, userID, name)

	default:
		return r.private(errorEmbed(fmt.Sprintf("Unknown subcommand: %s", sub.Name)))
	}
}

func (b *Bot) playSavedPlaylist(r *reply, userID, name string) error {
	tracks, err := b.store.Playlist(userID, name)
	if err != nil {
		return r.private(warnEmbed(playlistMessage(err)))
	}
	if len(tracks) == 0 {
		return r.private(warnEmbed("Playlist is empty!"))
	}

	if err := r.ack(); err != nil {
		return err
	}
	if err := b.ensureVoice(r.guildID(), userID); err != nil {
		return r.public(errorEmbed(userMessage(err)))
	}
	if err := b.registry.EnqueueBatch(r.guildID(), tracks, b.notifiers.forChannel(r.channelID())); err != nil {
		return r.public(errorEmbed(userMessage(err)))
	}

	return r.public(&discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Queued playlist"},
		Title:       escape(name),
		Description: fmt.Sprintf("%d tracks", len(tracks)),
		Color:       colorPlay,
	})
}
