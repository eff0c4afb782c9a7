package poller

import (
	"strings"
	"time"
)

// queryDateLayout renders "Wed Feb 17 2016 19:08:14": weekday, month, day,
// clock and year, with no zone. Get-WinEvent parses it in the host's local
// zone.
const queryDateLayout = "Mon Jan 02 2006 15:04:05"

// FormatProviders joins provider names into the ProviderName list accepted
// by Get-WinEvent's filter hash table.
//
// The joining is asymmetric and must not be "cleaned up": the first name is
// followed by ", ", interior names are written as " name," and the last as
// " name". A single provider is returned unchanged.
//
//	[A]       -> "A"
//	[A B]     -> "A,  B"
//	[A B C]   -> "A,  B, C"
func FormatProviders(providers []string) string {
	var b strings.Builder
	last := len(providers) - 1
	for i, p := range providers {
		switch {
		case i == 0 && last == 0:
			b.WriteString(p)
		case i == 0:
			b.WriteString(p)
			b.WriteString(", ")
		case i == last:
			b.WriteString(" ")
			b.WriteString(p)
		default:
			b.WriteString(" ")
			b.WriteString(p)
			b.WriteString(",")
		}
	}
	return b.String()
}

// FormatDate renders t for the StartTime and EndTime filter keys, in t's own
// location. The layout is fixed and does not depend on the process locale.
func FormatDate(t time.Time) string {
	return t.Format(queryDateLayout)
}
