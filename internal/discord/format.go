package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/music/media"
	"github.com/keshon/jukebox/internal/storage"
)

const (
	EmbedColor   = 0xb01e66
	colorPlay    = 0x1f8b4c
	colorHistory = 0x9b59b6
	colorError   = 0xe74c3c
	colorWarn    = 0xe67e22

	progressMarker = "🔘"
	progressTrack  = "─"
	ellipsis       = "…"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

// escape neutralises Discord markdown in user supplied text.
func escape(text string) string {
	return markdownEscaper.Replace(text)
}

// limitLength cuts text so that it stays within width bytes, always on a
// rune boundary, and marks the cut with an ellipsis.
func limitLength(text string, width int) string {
	if len(text) <= width {
		return text
	}

	prev, prevPrev := 0, 0
	for i := range text {
		if i > width {
			return text[:prevPrev] + ellipsis
		}
		prevPrev, prev = prev, i
	}
	return text
}

// progressBar draws length cells with the marker placed at fraction.
func progressBar(length int, fraction float64, marker, track string) string {
	display := max(int(float64(length)*fraction), 0)
	return strings.Repeat(track, min(display, length-1)) +
		marker +
		strings.Repeat(track, max(length-display-1, 0))
}

func playbackFraction(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return min(float64(elapsed)/float64(duration), 1)
}

func pageCount(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func pageFooter(page, pages, total int, noun string) *discordgo.MessageEmbedFooter {
	if total != 1 {
		noun += "s"
	}
	return &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d of %d · %d %s", page, pages, total, noun),
	}
}

func trackLink(info media.MediaInfo, textLength int) string {
	return fmt.Sprintf("[%s](%s)", escape(limitLength(info.Title, textLength)), info.URL)
}

// queueLines renders one page of ReadQueue output. Row zero of the first
// page is the current track, or a blank placeholder when idle.
func queueLines(items []media.MediaInfo, offset, textLength int) []string {
	lines := make([]string, 0, len(items))
	for i, info := range items {
		pos := offset + i
		switch {
		case pos == 0 && info.IsEmpty():
			continue
		case pos == 0:
			lines = append(lines, fmt.Sprintf("**▶ %s** (%s)", trackLink(info, textLength), media.FormatTimestamp(info.Duration)))
		default:
			lines = append(lines, fmt.Sprintf("**%d) %s** (%s)", pos, trackLink(info, textLength), media.FormatTimestamp(info.Duration)))
		}
	}
	return lines
}

func queueEmbed(items []media.MediaInfo, offset, page, pages, total, textLength int) *discordgo.MessageEmbed {
	lines := queueLines(items, offset, textLength)
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "The queue is empty."
	}
	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: desc,
		Color:       colorPlay,
		Footer:      pageFooter(page, pages, total, "track"),
	}
}

func historyEmbed(entries []storage.HistoryEntry, offset, page, pages, total, textLength int) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("**%d) %s** (%s) <t:%d:R>",
			offset+i+1, trackLink(e.Info, textLength), media.FormatTimestamp(e.Info.Duration), e.PlayedAt.Unix()))
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "Nothing played yet."
	}
	return &discordgo.MessageEmbed{
		Title:       "History",
		Description: desc,
		Color:       colorHistory,
		Footer:      pageFooter(page, pages, total, "track"),
	}
}

func playlistEmbed(name string, tracks []media.MediaInfo, textLength int) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(tracks))
	var length time.Duration
	for i, t := range tracks {
		lines = append(lines, fmt.Sprintf("**%d) %s** (%s)", i+1, trackLink(t, textLength), media.FormatTimestamp(t.Duration)))
		length += t.Duration
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "This playlist is empty."
	}
	return &discordgo.MessageEmbed{
		Title:       escape(name),
		Description: limitLength(desc, 4000),
		Color:       colorHistory,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d tracks · %s", len(tracks), media.FormatTimestamp(length))},
	}
}

func nowPlayingEmbed(p media.MediaInfo, elapsed time.Duration, barLength int) *discordgo.MessageEmbed {
	bar := progressBar(barLength, playbackFraction(elapsed, p.Duration), progressMarker, progressTrack)
	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Now playing"},
		Title:       p.Title,
		URL:         p.URL,
		Description: fmt.Sprintf("%s\n`%s / %s`", bar, media.FormatTimestamp(elapsed), media.FormatTimestamp(p.Duration)),
		Color:       colorPlay,
	}
	if p.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.Thumbnail}
	}
	if p.Uploader != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: p.Uploader}
	}
	return embed
}

func queuedEmbed(info media.MediaInfo, author string) *discordgo.MessageEmbed {
	uploader := info.Uploader
	if uploader == "" {
		uploader = "unknown"
	}
	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: author},
		Title:       info.Title,
		URL:         info.URL,
		Description: fmt.Sprintf("**%s** · %s", escape(uploader), media.FormatTimestamp(info.Duration)),
		Color:       colorPlay,
	}
	if info.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: info.Thumbnail}
	}
	return embed
}

func queuedPlaylistEmbed(infos []media.MediaInfo) *discordgo.MessageEmbed {
	first := infos[0]
	title, uploader := first.Title, first.Uploader
	if first.Playlist != nil {
		title, uploader = first.Playlist.Title, first.Playlist.Uploader
	}
	if uploader == "" {
		uploader = "unknown"
	}
	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Queued playlist"},
		Title:       title,
		URL:         first.URL,
		Description: fmt.Sprintf("**%s** · %d tracks", escape(uploader), len(infos)),
		Color:       colorPlay,
	}
	if first.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: first.Thumbnail}
	}
	return embed
}

func chaptersEmbed(info media.MediaInfo, chapters []media.Chapter, textLength int) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(chapters))
	for i, c := range chapters {
		lines = append(lines, fmt.Sprintf("**%d)** `%s` %s", i+1, c.Timestamp, escape(limitLength(c.Label, textLength))))
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "No timestamps found in the description."
	}
	return &discordgo.MessageEmbed{
		Title:       info.Title,
		URL:         info.URL,
		Description: limitLength(desc, 4000),
		Color:       colorPlay,
	}
}

func infoEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "Info", Description: msg, Color: EmbedColor}
}

func warnEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "Warning", Description: msg, Color: colorWarn}
}

func errorEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "Error", Description: msg, Color: colorError}
}
