package discord

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/logging"
)

const (
	logFence = "```ansi\n"
	// Leaves room under Discord's 2000 character message limit.
	logMessageLimit = 1950
)

var (
	adminOnly int64 = discordgo.PermissionAdministrator
	minFrom         = 0.0
)

// debugCommands are for server admins chasing a misbehaving bot.
func debugCommands() []*discordgo.ApplicationCommand {
	levels := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "debug", Value: "debug"},
		{Name: "info", Value: "info"},
		{Name: "warn", Value: "warn"},
		{Name: "error", Value: "error"},
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "log",
			Description:              "Show the newest lines of the bot log",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "level", Description: "Lowest level to show", Choices: levels},
				{Type: discordgo.ApplicationCommandOptionString, Name: "component", Description: "Only lines from this component, like player or stream"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "from", Description: "Skip this many of the newest lines", MinValue: &minFrom},
			},
		},
		{Name: "log-file", Description: "Upload the bot log file", DefaultMemberPermissions: &adminOnly},
	}
}

// renderLog builds the /log reply out of the log file entries.
func renderLog(entries []logging.Entry, level, component string, from int) (string, error) {
	threshold, err := logging.ParseMinLevel(level)
	if err != nil {
		return "", err
	}
	entries = logging.Filter(entries, threshold, component)

	lines := make([]string, len(entries))
	for n, e := range entries {
		lines[n] = e.Format()
	}
	body := logging.Tail(lines, logMessageLimit-len(logFence)-len("\n```"), from)
	if body == "" {
		return "`No logs found`", nil
	}
	return logFence + body + "\n```", nil
}

func (b *Bot) handleLog(r *reply) error {
	if b.cfg.LogFile == "" {
		return r.private(warnEmbed("LOG_FILE is not set, there is nothing to read"))
	}
	entries, err := logging.ReadEntries(b.cfg.LogFile)
	if err != nil {
		b.log.Warn().Err(err).Str("path", b.cfg.LogFile).Msg("failed to read log file")
		return r.private(errorEmbed("Unable to get log file"))
	}

	opts := r.options()
	text, err := renderLog(entries, stringOption(opts, "level"), stringOption(opts, "component"), intOption(opts, "from", 0))
	if err != nil {
		return r.private(errorEmbed(err.Error()))
	}
	return r.text(text, true)
}

func (b *Bot) handleLogFile(r *reply) error {
	if b.cfg.LogFile == "" {
		return r.private(warnEmbed("LOG_FILE is not set, there is nothing to upload"))
	}
	f, err := os.Open(b.cfg.LogFile)
	if err != nil {
		b.log.Warn().Err(err).Str("path", b.cfg.LogFile).Msg("failed to open log file")
		return r.private(errorEmbed("Unable to get log file"))
	}
	defer f.Close()

	// Uploads can outlast the response window.
	if err := r.ackPrivate(); err != nil {
		return err
	}
	if err := r.file(filepath.Base(b.cfg.LogFile), f); err != nil {
		return fmt.Errorf("failed to upload log file: %w", err)
	}
	return nil
}
