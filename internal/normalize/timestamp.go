package normalize

import (
	"strconv"
	"strings"
	"time"
)

const (
	datePrefix = "/Date("
	dateSuffix = ")/"
)

// ParseTimeCreated decodes the TimeCreated value written by ConvertTo-Json.
//
// Windows PowerShell wraps epoch milliseconds as "/Date(1455657195651)/",
// sometimes with a trailing UTC offset ("/Date(1455657195651-0800)/") that
// does not change the instant. PowerShell 7 writes an RFC 3339 string
// instead; both forms are accepted.
//
// Malformed input yields the zero [time.Time]. Callers that need to tell a
// missing timestamp from a real one should check [time.Time.IsZero].
func ParseTimeCreated(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if strings.HasPrefix(s, datePrefix) && strings.HasSuffix(s, dateSuffix) {
		digits := s[len(datePrefix) : len(s)-len(dateSuffix)]
		// skip index 0 so a leading minus (pre-1970) is kept
		if len(digits) > 1 {
			if i := strings.IndexAny(digits[1:], "+-"); i >= 0 {
				digits = digits[:i+1]
			}
		}
		ms, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return time.Time{}
		}
		return time.UnixMilli(ms)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
