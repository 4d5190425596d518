// Package slug converts titles into URL-safe identifiers and keeps them
// unique within a site.
//
// Deduplicate works against a snapshot of the site's existing slugs and is a
// best-effort optimization: the UNIQUE(site_id, slug) index at the storage
// layer remains the correctness backstop under concurrent allocation.
package slug

import (
	"strconv"
	"strings"
)

// Make converts a title into a slug candidate: lowercase, runs of
// non-alphanumeric characters collapse to single hyphens, edges trimmed.
func Make(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// Deduplicate returns candidate if unused within the site, otherwise the
// first candidate-N (N = 1, 2, ...) not present in existing.
func Deduplicate(candidate string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s] = true
	}
	if !taken[candidate] {
		return candidate
	}
	for n := 1; ; n++ {
		next := candidate + "-" + strconv.Itoa(n)
		if !taken[next] {
			return next
		}
	}
}
