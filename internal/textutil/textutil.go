// Package textutil provides name sanitization and display casing for
// product-derived identifiers, storage keys, and thumbnail titles.
package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	unsafePattern   = regexp.MustCompile(`[^a-z0-9._-]+`)
	collapsePattern = regexp.MustCompile(`-{2,}`)
	titleCaser      = cases.Title(language.English)
)

// SanitizeName converts free-form text into a lowercase token safe for
// filenames and object-storage keys. Returns fallback when nothing
// survives sanitization.
func SanitizeName(value, fallback string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	cleaned := unsafePattern.ReplaceAllString(lowered, "-")
	cleaned = collapsePattern.ReplaceAllString(cleaned, "-")
	cleaned = strings.Trim(cleaned, "-._")
	if cleaned == "" {
		return fallback
	}
	if len(cleaned) > 80 {
		cleaned = strings.Trim(cleaned[:80], "-._")
	}
	return cleaned
}

// DisplayTitle normalizes whitespace and title-cases text for on-frame
// overlays.
func DisplayTitle(value string) string {
	collapsed := strings.Join(strings.Fields(value), " ")
	if collapsed == "" {
		return ""
	}
	return titleCaser.String(collapsed)
}
