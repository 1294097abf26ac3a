package parser

import (
	"regexp"
	"strings"
	"time"
)

// Substitutions run in this fixed order: UUID before integer-run, since a
// UUID contains digit substrings that would otherwise be partially consumed.
var (
	reUUID    = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	reIPv4    = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)
	reHex     = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)
	reIntRun  = regexp.MustCompile(`\d+`)
	reWhite   = regexp.MustCompile(`\s+`)
	reISOTime = regexp.MustCompile(`^\[?(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\]?\s*`)
)

// normalize replaces UUID, IPv4, hex-literal and integer-run tokens with
// fixed placeholders, in that order, then collapses whitespace.
func normalize(s string) string {
	s = reUUID.ReplaceAllString(s, "<uuid>")
	s = reIPv4.ReplaceAllString(s, "<ip>")
	s = reHex.ReplaceAllString(s, "<hex>")
	s = reIntRun.ReplaceAllString(s, "<num>")
	s = reWhite.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripLeadingTimestamp removes a leading ISO-8601 timestamp (optionally
// bracketed, as in "[2025-06-25T02:37:12Z][ERROR]: ...") from a text line
// and reports the parsed instant when one was found.
func stripLeadingTimestamp(line string) (rest string, ts time.Time, found bool) {
	m := reISOTime.FindStringSubmatchIndex(line)
	if m == nil {
		return line, time.Time{}, false
	}
	raw := line[m[2]:m[3]]
	rest = strings.TrimSpace(line[m[1]:])
	parsed, ok := parseISOInstant(raw)
	if !ok {
		return rest, time.Time{}, false
	}
	return rest, parsed, true
}

func parseISOInstant(raw string) (time.Time, bool) {
	layouts := []string{
		"2006-01-02T15:04:05.999999999Z",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z",
		"2006-01-02 15:04:05.999999999",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
