package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Entry is one line of the JSON log file written by New.
type Entry struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

// ReadEntries loads every well-formed line of the log file at path.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return entries, nil
}

// ParseMinLevel parses a level filter. An empty name lets everything through.
func ParseMinLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.TraceLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.TraceLevel, fmt.Errorf("unknown level %q", name)
	}
	return level, nil
}

// Filter keeps entries at or above threshold whose component contains component.
func Filter(entries []Entry, threshold zerolog.Level, component string) []Entry {
	component = strings.ToLower(component)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		level, err := zerolog.ParseLevel(e.Level)
		if err != nil {
			level = zerolog.NoLevel
		}
		if level < threshold {
			continue
		}
		if component != "" && !strings.Contains(strings.ToLower(e.Component), component) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func forcedColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

var levelColors = map[string]*color.Color{
	"trace": forcedColor(color.FgMagenta),
	"debug": forcedColor(color.FgBlue),
	"info":  forcedColor(color.FgGreen),
	"warn":  forcedColor(color.FgYellow),
	"error": forcedColor(color.FgRed, color.Bold),
	"fatal": forcedColor(color.FgRed, color.Bold),
	"panic": forcedColor(color.FgRed, color.Bold),
}

// Format renders e as one ANSI coloured line.
func (e Entry) Format() string {
	ts := e.Time
	if t, err := time.Parse(time.RFC3339, e.Time); err == nil {
		ts = t.Format(time.DateTime)
	}

	level := strings.ToUpper(e.Level)
	if c, ok := levelColors[e.Level]; ok {
		level = c.Sprint(level)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", ts, level)
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	b.WriteString(" " + e.Message)
	if e.Error != "" {
		b.WriteString(": " + e.Error)
	}
	return b.String()
}

// Tail joins the newest lines that fit in limit bytes, oldest first, after
// dropping the skip newest.
func Tail(lines []string, limit, skip int) string {
	end := max(len(lines)-max(skip, 0), 0)

	start, size := end, 0
	for start > 0 {
		n := len(lines[start-1])
		if start < end {
			n++
		}
		if size+n > limit {
			break
		}
		size += n
		start--
	}
	return strings.Join(lines[start:end], "\n")
}
