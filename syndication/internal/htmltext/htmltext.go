// Package htmltext extracts plain text from rendered HTML.
// Used to derive feed excerpts for posts that have none.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Extract returns the visible text content of an HTML fragment with
// whitespace collapsed. Script and style contents are skipped.
func Extract(fragment string) string {
	tok := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skipDepth := 0
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tok.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tok.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// Excerpt extracts text and truncates it to at most max runes, cutting at a
// word boundary when possible.
func Excerpt(fragment string, max int) string {
	text := Extract(fragment)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

func skippedTag(name string) bool {
	return name == "script" || name == "style" || name == "noscript"
}
