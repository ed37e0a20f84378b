package security

import (
	"strconv"
	"time"
)

// DefaultTTL is the fallback token lifetime when a TTL string cannot be
// parsed at all.
const DefaultTTL = 15 * time.Minute

// ParseTTL converts a human-readable lifetime such as "15m", "7d", or "30s"
// into a duration. Recognized unit suffixes are s (seconds), m (minutes),
// h (hours), and d (days). A missing or unrecognized unit means the leading
// digits are read as a raw millisecond count, ignoring whatever trails them;
// a string with no leading digits at all falls back to DefaultTTL.
func ParseTTL(s string) time.Duration {
	if s == "" {
		return DefaultTTL
	}
	unit := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])
	if err == nil {
		switch unit {
		case 's':
			return time.Duration(value) * time.Second
		case 'm':
			return time.Duration(value) * time.Minute
		case 'h':
			return time.Duration(value) * time.Hour
		case 'd':
			return time.Duration(value) * 24 * time.Hour
		}
	}
	// No recognized unit: take the leading digit run as milliseconds.
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	ms, err := strconv.Atoi(s[:i])
	if err != nil {
		return DefaultTTL
	}
	return time.Duration(ms) * time.Millisecond
}
