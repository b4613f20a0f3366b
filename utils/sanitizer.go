package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TruncationMarker is appended to any body cut down to the configured limit.
const TruncationMarker = "\n\n...[truncated]..."

// DefaultURLLimit caps ExtractURLs when the caller passes no limit.
const DefaultURLLimit = 50

var (
	// StrictPolicy removes every tag, leaving text content only
	StrictPolicy *bluemonday.Policy

	// RE2 has no backreferences, so each block kind gets its own pattern.
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	titleBlockPattern  = regexp.MustCompile(`(?is)<title\b[^>]*>(.*?)</title\s*>`)

	horizontalSpacePattern = regexp.MustCompile(`[ \t]+`)
	blankLinesPattern      = regexp.MustCompile(`\n\s+\n`)
	urlPattern             = regexp.MustCompile(`https?://[^\s<>()"']+`)
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()
	// Keeps "<p>a</p><p>b</p>" from collapsing into "ab".
	StrictPolicy.AddSpaceWhenStrippingTag(true)
}

// HTMLToText flattens an HTML body into plain text. Script and style blocks
// are dropped with their content before any other tag is stripped. The
// title is kept as text; bluemonday would otherwise discard it.
func HTMLToText(body string) string {
	if body == "" {
		return ""
	}

	cleaned := scriptBlockPattern.ReplaceAllString(body, "")
	cleaned = styleBlockPattern.ReplaceAllString(cleaned, "")
	cleaned = titleBlockPattern.ReplaceAllString(cleaned, " $1 ")
	cleaned = StrictPolicy.Sanitize(cleaned)
	cleaned = html.UnescapeString(cleaned)

	cleaned = horizontalSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = blankLinesPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// Truncate bounds text to limit characters (runes, not bytes). A limit of
// zero or less redacts the text entirely.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", text != ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	return takeRunes(text, limit) + TruncationMarker, true
}

// ExtractURLs returns http(s) URLs in order of first appearance. Duplicates
// are kept.
func ExtractURLs(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultURLLimit
	}
	urls := urlPattern.FindAllString(text, limit)
	if urls == nil {
		return []string{}
	}
	return urls
}

// SingleLine flattens CR/LF to spaces so a value cannot break a log line.
func SingleLine(value string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
}

// Preview is SingleLine bounded to n characters.
func Preview(value string, n int) string {
	return takeRunes(SingleLine(value), n)
}

func takeRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
