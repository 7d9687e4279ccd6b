// Package kiln is the runtime used by code generated from .kiln files.
//
// Generated components write through a Writer. Every interpolated value
// is escaped unless it is a Raw, a templ.Component or a gomponents Node.
package kiln

import "strings"

// Raw is HTML written without escaping. Converting untrusted input to Raw
// bypasses escaping.
type Raw string

var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Escape replaces the five HTML-significant characters with character
// references.
func Escape(s string) string {
	return escaper.Replace(s)
}
