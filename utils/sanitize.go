package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	richPolicy = bluemonday.UGCPolicy()
)

// SanitizeText strips all markup and trims the result. Entities produced by
// the policy are decoded again so plain text round-trips.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(input)))
}

// SanitizeRich keeps the safe subset of HTML for owner-written descriptions.
func SanitizeRich(input string) string {
	return strings.TrimSpace(richPolicy.Sanitize(input))
}
