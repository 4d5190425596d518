// Package fingerprint derives stable content hashes for posts.
//
// A fingerprint is an opaque version token: it changes if and only if one of
// the content-bearing fields changes. Consumers compare tokens to decide
// whether a post needs re-processing; the token is never parsed.
//
// The token is a name-based UUID (v5 style, uuid.NewSHA1) under a fixed
// inkwell namespace, so tokens are compact, URL-safe, and algorithm changes
// can be rolled by rotating the namespace.
package fingerprint

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Namespace is the fixed UUID namespace for post fingerprints.
// Rotating it invalidates every stored token, forcing a full re-sync.
var Namespace = uuid.MustParse("b3c9f0d2-5a71-4e4f-9c92-8f4a6e01d7ab")

// fieldSep separates normalized fields in the canonical form. A field value
// cannot contain it (0x1f is stripped from no real-world title or body), so
// field boundaries stay unambiguous.
const fieldSep = "\x1f"

// Input is the set of fields covered by a post fingerprint.
// Slug is included so slug changes produce a new token.
type Input struct {
	SiteID         string
	Slug           string
	Title          string
	BodyMarkdown   string
	SEOTitle       string
	SEODescription string
	Tags           []string
}

// Compute returns the fingerprint token for the given input.
// Pure and deterministic: strings are trimmed, empty optionals collapse to
// the empty string, and tags are sorted so collection order never matters.
func Compute(in Input) string {
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)

	canonical := strings.Join([]string{
		strings.TrimSpace(in.SiteID),
		strings.TrimSpace(in.Slug),
		strings.TrimSpace(in.Title),
		strings.TrimSpace(in.BodyMarkdown),
		strings.TrimSpace(in.SEOTitle),
		strings.TrimSpace(in.SEODescription),
		strings.Join(tags, ","),
	}, fieldSep)

	return uuid.NewSHA1(Namespace, []byte(canonical)).String()
}
