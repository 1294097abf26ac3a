// Package parser turns one raw log line into a canonical signature of the
// form "LEVEL: normalized_message", or decides the line carries nothing
// worth clustering. It is pure and stateless: the same line with the same
// min-severity floor always yields the same result.
package parser

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

var (
	reBracketLevel = regexp.MustCompile(`\[(CRITICAL|ERROR|WARNING|WARN|INFO|SERVICE|DEBUG)\]`)
	reBareLevel    = regexp.MustCompile(`\b(CRITICAL|ERROR|WARNING|WARN|INFO|SERVICE|DEBUG)\b`)
	// The colon is deliberately mandatory: without one, "FooException in
	// module.py" is ordinary prose, not a colon-delimited detail message,
	// and must normalize as-is rather than having "in module.py" folded
	// into the exception name.
	reException = regexp.MustCompile(`\b(\w+(Exception|Error))\b[^:]*:\s+(.+)`)
	reTrailDetails = regexp.MustCompile(`(?i)\bDetails:\s*$`)
	reLeadStrip    = regexp.MustCompile(`^[:\-\s]+`)
)

// Parse extracts (timestamp, level_rank, signature) from one raw log line.
// It returns ok=false when the line should be dropped: invalid UTF-8, empty,
// or below minSeverity.
func Parse(line string, minSeverity int) (models.LogEvent, bool) {
	if !isValidUTF8(line) {
		return models.LogEvent{}, false
	}
	trimmed := strings.TrimSpace(firstLine(line))
	if trimmed == "" {
		return models.LogEvent{}, false
	}

	if strings.HasPrefix(trimmed, "{") {
		if ev, ok := parseJSONLine(trimmed, minSeverity); ok {
			return ev, true
		}
		// Malformed JSON falls through to the text path, per spec.
	}

	return parseTextLine(trimmed, minSeverity)
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func isValidUTF8(s string) bool {
	return utf8.ValidString(s)
}

func parseJSONLine(line string, minSeverity int) (models.LogEvent, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return models.LogEvent{}, false
	}

	level := "INFO"
	if v := lookupCI(obj, "level", "severity"); v != "" {
		level = v
	}
	level = canonicalLevel(level)
	rank := LevelRank(level)
	if rank < minSeverity {
		return models.LogEvent{}, false
	}

	message := lookupCI(obj, "msg", "message")
	sig := signatureOf(level, normalize(message))

	return models.LogEvent{
		Signature: sig,
		Timestamp: time.Now().UTC(),
		LevelRank: rank,
		Raw:       line,
	}, true
}

// lookupCI returns the first string value found under any of the given
// keys, matched case-insensitively against the object's actual keys.
func lookupCI(obj map[string]any, keys ...string) string {
	for _, want := range keys {
		for k, v := range obj {
			if strings.EqualFold(k, want) {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

func parseTextLine(line string, minSeverity int) (models.LogEvent, bool) {
	rest, parsedTS, hasTimestamp := stripLeadingTimestamp(line)
	ts := time.Now().UTC()
	if hasTimestamp {
		ts = parsedTS
	}

	var level string
	var tail string
	if m := reBracketLevel.FindStringSubmatchIndex(rest); m != nil {
		level = canonicalLevel(rest[m[2]:m[3]])
		tail = rest[m[1]:]
	} else if m := reBareLevel.FindStringSubmatchIndex(rest); m != nil {
		level = canonicalLevel(rest[m[2]:m[3]])
		tail = rest[m[1]:]
	}

	if level == "" {
		rank := 0
		if rank < minSeverity {
			return models.LogEvent{}, false
		}
		sig := fmt.Sprintf("UNCLASSIFIED:%s", shortSHA1(normalize(rest)))
		return models.LogEvent{Signature: sig, Timestamp: ts, LevelRank: rank, Raw: line}, true
	}

	rank := LevelRank(level)
	if rank < minSeverity {
		return models.LogEvent{}, false
	}

	candidate := reLeadStrip.ReplaceAllString(tail, "")
	candidate = stripDetailsSuffix(candidate)

	if m := reException.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1] + " " + m[3])
	}

	sig := signatureOf(level, normalize(candidate))
	return models.LogEvent{Signature: sig, Timestamp: ts, LevelRank: rank, Raw: line}, true
}

func signatureOf(level, normalized string) string {
	if normalized == "" {
		return level
	}
	return level + ": " + normalized
}

// stripDetailsSuffix removes a trailing "(Details:)? {...valid JSON...}"
// blob. The remaining text is the message body.
func stripDetailsSuffix(candidate string) string {
	trimmed := strings.TrimRight(candidate, " \t")
	if !strings.HasSuffix(trimmed, "}") {
		return candidate
	}
	for i, r := range trimmed {
		if r != '{' {
			continue
		}
		suffix := trimmed[i:]
		if json.Valid([]byte(suffix)) {
			head := trimmed[:i]
			head = reTrailDetails.ReplaceAllString(head, "")
			return strings.TrimSpace(head)
		}
	}
	return candidate
}

func shortSHA1(s string) string {
	sum := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)[:8]
}
