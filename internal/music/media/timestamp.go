package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timestampPattern = regexp.MustCompile(`[0-9]*:?[0-9]?[0-9]:[0-9][0-9]`)

// Chapter is a timestamped line found in a track description.
type Chapter struct {
	At        time.Duration
	Label     string
	Timestamp string
	Line      string
}

// FormatTimestamp renders d as M:SS, or H:MM:SS once it reaches an hour.
// Fractions of a second are truncated.
func FormatTimestamp(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	seconds := total % 60
	minutes := total / 60 % 60
	hours := total / 3600

	if hours <= 0 {
		return fmt.Sprintf("%d:%02d", minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// ParseTimestamp folds a colon separated timestamp ("1:02:03", "4:05", "42")
// into a duration. Fields that are not numbers count as zero.
func ParseTimestamp(s string) time.Duration {
	var total int64
	for _, field := range strings.Split(strings.TrimSpace(s), ":") {
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			n = 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

// IsTimestamp reports whether s contains something shaped like M:SS.
func IsTimestamp(s string) bool {
	return timestampPattern.MatchString(s)
}

// ParseChapters extracts one chapter per description line that carries a
// timestamp. The label is the text around the timestamp.
func ParseChapters(description string) []Chapter {
	var chapters []Chapter

	for _, line := range strings.Split(description, "\n") {
		loc := timestampPattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		stamp := line[loc[0]:loc[1]]
		front := strings.TrimSpace(line[:loc[0]])
		back := strings.TrimSpace(line[loc[1]:])

		label := front + back
		if front != "" && back != "" {
			label = front + " " + back
		}

		chapters = append(chapters, Chapter{
			At:        ParseTimestamp(stamp),
			Label:     label,
			Timestamp: stamp,
			Line:      line,
		})
	}

	return chapters
}
