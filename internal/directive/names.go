package directive

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// words splits a Go identifier into its words: HTMLForm is HTML, Form.
func words(name string) []string {
	runes := []rune(name)
	var out []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch {
		case cur == '_':
			if i > start {
				out = append(out, string(runes[start:i]))
			}
			start = i + 1
		case unicode.IsLower(prev) && unicode.IsUpper(cur),
			unicode.IsDigit(prev) && unicode.IsUpper(cur),
			unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(next):
			if i > start {
				out = append(out, string(runes[start:i]))
			}
			start = i
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// CamelKey returns the JSON-LD key for a field name: DatePublished is
// datePublished and URL is url.
func CamelKey(name string) string {
	ws := words(name)
	if len(ws) == 0 {
		return ""
	}
	lower := cases.Lower(language.Und)
	title := cases.Title(language.Und)
	var b strings.Builder
	b.WriteString(lower.String(ws[0]))
	for _, w := range ws[1:] {
		b.WriteString(title.String(w))
	}
	return b.String()
}

// KebabName returns the URL segment for a func name: CreateUser is
// create-user.
func KebabName(name string) string {
	ws := words(name)
	lower := cases.Lower(language.Und)
	for i, w := range ws {
		ws[i] = lower.String(w)
	}
	return strings.Join(ws, "-")
}
