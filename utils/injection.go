package utils

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultSignalsMax bounds the number of signal names reported per read.
const DefaultSignalsMax = 10

// InjectionPattern is one named heuristic in the detector table
type InjectionPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// RE2's \b only knows ASCII word characters, so Cyrillic phrases use these
// explicit edges instead.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	nonWord   = `[^\p{L}\p{N}_]`
)

// gap matches 1..n characters that begin and end outside a word, the same
// span "\b.{0,n}\b" covers between two words.
func gap(n int) string {
	return nonWord + `(?:.{0,` + strconv.Itoa(n-2) + `}` + nonWord + `)?`
}

// DefaultInjectionPatterns is evaluated top to bottom. New heuristics are
// appended here; order decides which names survive the signal cap.
var DefaultInjectionPatterns = []InjectionPattern{
	{"ignore_instructions_en", regexp.MustCompile(`(?i)\bignore\b.{0,40}\b(?:instructions|system|developer)\b`)},
	{"ignore_instructions_ru", regexp.MustCompile(`(?i)` + wordStart + `игнорир(?:уй|уйте|овать)` + gap(60) + `(?:инструкц|системн|разработчик)`)},
	{"tool_calling_en", regexp.MustCompile(`(?i)\b(?:call|invoke|run|use)\b.{0,30}\b(?:tool|function|api)\b`)},
	{"tool_calling_ru", regexp.MustCompile(`(?i)` + wordStart + `(?:вызови|запусти|используй)` + gap(30) + `(?:инструмент|функц|api)`)},
	{"system_prompt_terms", regexp.MustCompile(`(?i)\b(?:system prompt|developer message|instruction hierarchy)\b`)},
	{"exfiltration_terms", regexp.MustCompile(`(?i)\b(?:exfiltrat(?:e|es|ed|ing|ion)|leak(?:s|ed|ing|age)?|steal(?:s|ing)?|stolen|credentials?|passwords?|tokens?|api[ _-]?keys?|secrets?)\b|\.env\b`)},
	{"exfiltration_terms_ru", regexp.MustCompile(`(?i)` + wordStart + `(?:эксфил|утечк|украд|парол|токен|ключ|секрет)|\.env\b`)},
	{"mentions_send_email", regexp.MustCompile(`(?i)\bsend_email\b`)},
	{"mentions_download_attachment", regexp.MustCompile(`(?i)\bdownload_attachment\b`)},
	{"mentions_move_delete", regexp.MustCompile(`(?i)\b(?:move_email|delete_email)\b`)},
}

// Detector flags inbound text that reads like an attempt to steer the agent
// consuming it. It is advisory: callers log the result, nothing is blocked.
type Detector struct {
	patterns []InjectionPattern
	max      int
}

// NewDetector builds a detector over patterns (DefaultInjectionPatterns when
// nil) reporting at most max names.
func NewDetector(patterns []InjectionPattern, max int) *Detector {
	if patterns == nil {
		patterns = DefaultInjectionPatterns
	}
	return &Detector{patterns: patterns, max: max}
}

// Detect returns the names of matching patterns in table order.
func (d *Detector) Detect(texts ...string) []string {
	signals := make([]string, 0)
	if d.max <= 0 {
		return signals
	}

	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return signals
	}

	// NFKC folds full-width and compatibility forms onto the ASCII the
	// patterns are written in.
	joined := norm.NFKC.String(strings.Join(parts, "\n"))

	for _, p := range d.patterns {
		if !p.Pattern.MatchString(joined) {
			continue
		}
		signals = append(signals, p.Name)
		if len(signals) >= d.max {
			break
		}
	}
	return signals
}
