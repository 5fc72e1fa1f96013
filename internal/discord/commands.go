package discord

import (
	"github.com/bwmarrin/discordgo"
)

type handlerFunc func(r *reply) error

var minPage = 1.0

func queryOption(desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "query",
		Description: desc,
		Required:    true,
	}
}

func pageOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "page",
		Description: "Page number",
		MinValue:    &minPage,
	}
}

func playlistNameOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: "Playlist name",
		Required:    true,
	}
}

func subCommand(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

// commandDefinitions lists every slash command the bot registers.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return append([]*discordgo.ApplicationCommand{
		{Name: "join", Description: "Join your voice channel"},
		{Name: "leave", Description: "Leave the voice channel and clear the queue"},
		{Name: "play", Description: "Queue a song or playlist", Options: []*discordgo.ApplicationCommandOption{queryOption("Query or url")}},
		{Name: "play-single", Description: "Queue a single song, ignoring playlists", Options: []*discordgo.ApplicationCommandOption{queryOption("Query or url")}},
		{Name: "play-next", Description: "Queue a song to play right after the current one", Options: []*discordgo.ApplicationCommandOption{queryOption("Query or url")}},
		{Name: "skip", Description: "Skip the current song"},
		{Name: "seek", Description: "Seek within the current song", Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "position",
			Description: "Seconds or a timestamp like 1:30",
			Required:    true,
		}}},
		{Name: "queue", Description: "Show the queue", Options: []*discordgo.ApplicationCommandOption{pageOption()}},
		{Name: "now-playing", Description: "Show the current song"},
		{Name: "timestamps", Description: "List the chapters of the current song", Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "chapter",
			Description: "Seek to this chapter",
			MinValue:    &minPage,
		}}},
		{Name: "mute", Description: "Mute the bot"},
		{Name: "unmute", Description: "Unmute the bot"},
		{Name: "deafen", Description: "Deafen the bot"},
		{Name: "undeafen", Description: "Undeafen the bot"},
		{Name: "history", Description: "Show the songs you queued recently", Options: []*discordgo.ApplicationCommandOption{pageOption()}},
		{Name: "playlist", Description: "Manage your saved playlists", Options: []*discordgo.ApplicationCommandOption{
			subCommand("create", "Create an empty playlist", playlistNameOption()),
			subCommand("delete", "Delete a playlist", playlistNameOption()),
			subCommand("list", "List your playlists"),
			subCommand("show", "Show the songs in a playlist", playlistNameOption()),
			subCommand("add", "Add the current song to a playlist", playlistNameOption()),
			subCommand("remove", "Remove a song from a playlist", playlistNameOption(), &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Url of the song to remove",
				Required:    true,
			}),
			subCommand("play", "Queue a whole playlist", playlistNameOption()),
		}},
	}, debugCommands()...)
}

func (b *Bot) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"join":        b.handleJoin,
		"leave":       b.handleLeave,
		"play":        b.playHandler(playAll),
		"play-single": b.playHandler(playSingle),
		"play-next":   b.playHandler(playNext),
		"skip":        b.handleSkip,
		"seek":        b.handleSeek,
		"queue":       b.handleQueue,
		"now-playing": b.handleNowPlaying,
		"timestamps":  b.handleTimestamps,
		"mute":        b.voiceFlagHandler(func(v *voiceSession) { v.mute = true }, "Now muted", "Already muted"),
		"unmute":      b.voiceFlagHandler(func(v *voiceSession) { v.mute = false }, "Unmuted", "Not muted"),
		"deafen":      b.voiceFlagHandler(func(v *voiceSession) { v.deaf = true }, "Deafened", "Already deafened"),
		"undeafen":    b.voiceFlagHandler(func(v *voiceSession) { v.deaf = false }, "Undeafened", "Not deafened"),
		"history":     b.handleHistory,
		"playlist":    b.handlePlaylist,
		"log":         b.handleLog,
		"log-file":    b.handleLogFile,
	}
}

// options flattens an option list into a lookup by name.
func options(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, def int) int {
	if o, ok := opts[name]; ok {
		return int(o.IntValue())
	}
	return def
}

// invoker returns the user who ran the interaction.
func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
