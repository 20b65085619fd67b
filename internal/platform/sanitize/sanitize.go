// Package sanitize cleans user-authored free text before it is written into
// generated tasks, binder items and handoffs. Both functions are total: any
// input, including the empty string, yields a string.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxMarkupLength is the rune limit applied by EscapeForMarkup.
	MaxMarkupLength = 1000
	// MaxTitleLength is the rune limit applied by Title.
	MaxTitleLength = 200
)

// markupEscaper replaces in a single left-to-right pass, so the ampersands it
// emits are never escaped a second time.
var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// EscapeForMarkup NFC-normalizes s, entity-escapes & < > " ' /, drops NUL
// bytes and truncates the result to MaxMarkupLength runes. Truncation never
// leaves a partial entity at the end.
func EscapeForMarkup(s string) string {
	if s == "" {
		return ""
	}
	out := norm.NFC.String(s)
	out = markupEscaper.Replace(out)
	out = strings.ReplaceAll(out, "\x00", "")
	out = truncate(out, MaxMarkupLength)
	// Every & in out opens an entity.
	if amp := strings.LastIndexByte(out, '&'); amp >= 0 && strings.IndexByte(out[amp:], ';') < 0 {
		out = out[:amp]
	}
	return out
}

// Title collapses every whitespace run (newlines and tabs included) into a
// single space, removes raw angle brackets, truncates to MaxTitleLength runes
// and trims.
func Title(s string) string {
	return TitleLimit(s, MaxTitleLength)
}

// TitleLimit is Title with a caller-chosen rune limit. Titles that already
// went through Title are returned unchanged for any limit of at least their
// length.
func TitleLimit(s string, max int) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	out := strings.NewReplacer("<", "", ">", "").Replace(b.String())
	return strings.TrimSpace(truncate(out, max))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
