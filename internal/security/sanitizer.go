package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxNicknameLength = 50
	maxTextLength     = 1000
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString removes potentially dangerous characters
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return truncateRunes(input, maxTextLength)
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeNickname strips markup and control characters from a display name.
// An empty result means the nickname is unusable.
func SanitizeNickname(input string) string {
	input = SanitizeHTML(SanitizeString(input))
	input = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, input)
	input = strings.Join(strings.Fields(input), " ")
	return truncateRunes(input, MaxNicknameLength)
}

// SanitizeQuestionText cleans question and option text supplied by hosts or imports.
func SanitizeQuestionText(input string) string {
	return strings.TrimSpace(SanitizeHTML(SanitizeString(input)))
}

func truncateRunes(input string, limit int) string {
	if utf8.RuneCountInString(input) <= limit {
		return input
	}
	runes := []rune(input)
	return string(runes[:limit])
}
