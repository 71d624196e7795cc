package dates

import (
	"fmt"
	"strings"
	"time"
)

// TimeAgo renders t relative to now the way the news feed and the "last
// updated" badge do. Both must be in the same frame (see Naive).
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	secs := int(diff / time.Second)
	mins := secs / 60
	hrs := mins / 60
	days := hrs / 24

	switch {
	case secs < 30:
		return "just now"
	case secs < 60:
		return fmt.Sprintf("%d seconds ago", secs)
	case mins < 60:
		return plural(mins, "minute") + " ago"
	case hrs < 24:
		return plural(hrs, "hour") + " ago"
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("02 Jan 2006 15:04")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ShortDisplay shortens a "DD Mon YYYY" string to "DD Mon YY" for badge
// display. Anything else is returned unchanged.
func ShortDisplay(raw string) string {
	parts := strings.Fields(raw)
	if len(parts) != 3 || len(parts[2]) < 2 {
		return raw
	}
	y := parts[2]
	return parts[0] + " " + parts[1] + " " + y[len(y)-2:]
}
