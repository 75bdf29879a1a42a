// Package sanitize strips markup from free-text input. Visit notes and
// cancellation reasons are stored and emailed as plain text, and error
// messages relayed from external APIs may contain HTML error pages.
package sanitize

import (
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// Text returns s with HTML tags removed, common entities decoded and
// surrounding whitespace trimmed. Safe for plain-text storage and
// display.
func Text(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Entity decoding can reassemble a tag, so strip again.
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}
