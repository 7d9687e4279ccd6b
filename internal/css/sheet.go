// Package css scopes and checks component stylesheets.
//
// There is no full CSS parser here. A sheet is split into a flat list of
// text runs and brace blocks, which is enough to rewrite selectors, find
// the class and id names a sheet defines, and catch the syntax slips that
// would otherwise fail silently in the browser.
package css

import (
	"fmt"
	"path"
	"strings"
)

// IsGlobalFile reports whether a stylesheet path names a global sheet.
// Global sheets are emitted verbatim: no scoping, no validation.
func IsGlobalFile(p string) bool {
	return path.Base(strings.ReplaceAll(p, "\\", "/")) == "global.css"
}

type itemKind int

const (
	itemText itemKind = iota
	itemBlock
)

// item is a top-level piece of a block's contents: either a run of text
// ending in ';' (or the end of input), or prelude { body }.
type item struct {
	kind   itemKind
	text   string
	body   string
	start  int
	bodyAt int
	end    int
}

// SyntaxError is a structural problem that stops the sheet from being
// split into rules.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("css: offset %d: %s", e.Offset, e.Message)
}

// split cuts src into items. base is added to reported offsets.
func split(src string, base int) ([]item, error) {
	var items []item
	runStart := 0

	flush := func(end int) {
		if end > runStart {
			items = append(items, item{kind: itemText, text: src[runStart:end], start: base + runStart, end: base + end})
		}
		runStart = end
	}

	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '/':
			if i+1 < len(src) && src[i+1] == '*' {
				end := strings.Index(src[i+2:], "*/")
				if end < 0 {
					return nil, &SyntaxError{Offset: base + i, Message: "unterminated comment"}
				}
				i += end + 3
			}
		case '"', '\'':
			end, ok := skipString(src, i)
			if !ok {
				return nil, &SyntaxError{Offset: base + i, Message: "unterminated string"}
			}
			i = end
		case '\\':
			i++
		case ';':
			flush(i + 1)
		case '{':
			close, ok := matchBrace(src, i)
			if !ok {
				return nil, &SyntaxError{Offset: base + i, Message: "unclosed '{'"}
			}
			items = append(items, item{
				kind:   itemBlock,
				text:   src[runStart:i],
				body:   src[i+1 : close],
				start:  base + runStart,
				bodyAt: base + i + 1,
				end:    base + close + 1,
			})
			runStart = close + 1
			i = close
		case '}':
			return nil, &SyntaxError{Offset: base + i, Message: "unexpected '}'"}
		}
	}
	flush(len(src))
	return items, nil
}

// skipString returns the index of the quote closing the string at i.
func skipString(src string, i int) (int, bool) {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j, true
		case '\n':
			return 0, false
		}
	}
	return 0, false
}

// matchBrace returns the index of the '}' matching the '{' at open.
func matchBrace(src string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '/':
			if i+1 < len(src) && src[i+1] == '*' {
				end := strings.Index(src[i+2:], "*/")
				if end < 0 {
					return 0, false
				}
				i += end + 3
			}
		case '"', '\'':
			end, ok := skipString(src, i)
			if !ok {
				return 0, false
			}
			i = end
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// stripComments blanks out /* ... */ comments outside strings. Offsets
// are preserved: comment bytes become spaces and newlines are kept.
func stripComments(s string) string {
	if !strings.Contains(s, "/*") {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '/':
			if i+1 < len(b) && b[i+1] == '*' {
				end := strings.Index(s[i+2:], "*/")
				stop := len(b)
				if end >= 0 {
					stop = i + end + 4
				}
				for j := i; j < stop; j++ {
					if b[j] != '\n' {
						b[j] = ' '
					}
				}
				i = stop - 1
			}
		case '"', '\'':
			if end, ok := skipString(s, i); ok {
				i = end
			}
		}
	}
	return string(b)
}

// atRuleName returns the keyword of an at-rule prelude such as
// "@media screen" -> "media".
func atRuleName(prelude string) string {
	p := strings.TrimPrefix(strings.TrimSpace(prelude), "@")
	end := strings.IndexFunc(p, func(r rune) bool {
		return !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if end >= 0 {
		p = p[:end]
	}
	return strings.ToLower(p)
}

// groupingRules hold nested style rules that are scoped recursively.
var groupingRules = map[string]bool{
	"media":          true,
	"supports":       true,
	"container":      true,
	"layer":          true,
	"document":       true,
	"scope":          true,
	"starting-style": true,
}

func isKeyframes(name string) bool {
	return name == "keyframes" || strings.HasSuffix(name, "-keyframes")
}
