package handlers

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractFirstURL returns the first http(s) URL found in text, or "".
func ExtractFirstURL(text string) string {
	return urlPattern.FindString(text)
}

// IsVKURL reports whether the URL points at VK.
func IsVKURL(url string) bool {
	return strings.Contains(url, "vk.com")
}

// cancelKeywords is the fixed set of questionnaire cancel synonyms.
var cancelKeywords = map[string]bool{
	"стоп":   true,
	"stop":   true,
	"cancel": true,
}

// IsCancelKeyword reports whether text is one of the cancel synonyms,
// case-insensitively.
func IsCancelKeyword(text string) bool {
	return cancelKeywords[strings.ToLower(strings.TrimSpace(text))]
}

// ValidateCookieFile checks uploaded cookie content for recognizable markers
// of the Netscape cookie format or the VK domain. This is a placeholder
// heuristic, not a security boundary.
func ValidateCookieFile(text string) bool {
	return strings.Contains(text, "Netscape") ||
		strings.Contains(text, ".vk.com") ||
		strings.Contains(text, "vk.com")
}
