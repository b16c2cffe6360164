package utils

import (
	"strings"
	"unicode"
)

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4", "۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// NormalizeDigits converts Persian and Arabic numerals to ASCII digits
func NormalizeDigits(input string) string {
	return digitReplacer.Replace(input)
}

var letterReplacer = strings.NewReplacer(
	"ي", "ی", // Arabic Yeh to Farsi Yeh
	"ك", "ک", // Arabic Kaf to Farsi Kaf
)

// NormalizeText folds Arabic letter variants and trims surrounding space
func NormalizeText(input string) string {
	return strings.TrimSpace(letterReplacer.Replace(input))
}

// FirstNumber returns the first run of digits in input, after normalizing
// Persian and Arabic numerals. ok is false when there is none.
func FirstNumber(input string) (n int, ok bool) {
	for _, r := range NormalizeDigits(input) {
		if unicode.IsDigit(r) && r < 128 {
			n = n*10 + int(r-'0')
			ok = true
			continue
		}
		if ok {
			break
		}
	}
	return n, ok
}

// IsTransientNetworkError reports whether err looks like a network hiccup
// worth retrying.
func IsTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "network is unreachable")
}
