package css

import (
	"sort"
	"strings"
)

// Result is a scoped stylesheet and the names it defines.
type Result struct {
	CSS     string
	Classes []string
	IDs     []string
}

// ScopeAttr returns the attribute name carried by elements of a scope.
func ScopeAttr(scope string) string {
	return "data-" + scope
}

// Scope rewrites every selector in src so it only matches elements that
// carry the data-<scope> attribute. Comments and at-rules are kept;
// grouping at-rules such as @media are scoped recursively, while
// @keyframes and @font-face bodies are left alone.
func Scope(src, scope string) (Result, error) {
	sel := "[" + ScopeAttr(scope) + "]"
	var (
		b       strings.Builder
		classes = map[string]bool{}
		ids     = map[string]bool{}
	)
	if err := scopeInto(&b, src, 0, sel, classes, ids); err != nil {
		return Result{}, err
	}
	return Result{CSS: b.String(), Classes: sortedKeys(classes), IDs: sortedKeys(ids)}, nil
}

// Names returns the class and id names a sheet defines without
// rewriting it.
func Names(src string) (classes, ids []string, err error) {
	cs, is := map[string]bool{}, map[string]bool{}
	var b strings.Builder
	if err := scopeInto(&b, src, 0, "", cs, is); err != nil {
		return nil, nil, err
	}
	return sortedKeys(cs), sortedKeys(is), nil
}

func scopeInto(b *strings.Builder, src string, base int, sel string, classes, ids map[string]bool) error {
	items, err := split(src, base)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.kind == itemText {
			b.WriteString(it.text)
			continue
		}

		prelude := strings.TrimSpace(stripComments(it.text))
		if strings.HasPrefix(prelude, "@") {
			name := atRuleName(prelude)
			b.WriteString(it.text)
			b.WriteByte('{')
			if groupingRules[name] {
				if err := scopeInto(b, it.body, it.bodyAt, sel, classes, ids); err != nil {
					return err
				}
			} else {
				b.WriteString(it.body)
			}
			b.WriteByte('}')
			continue
		}

		lead := it.text[:len(it.text)-len(strings.TrimLeft(it.text, " \t\r\n"))]
		selectors := SplitSelectors(prelude)
		for i, s := range selectors {
			collectNames(s, classes, ids)
			if sel != "" {
				selectors[i] = ScopeSelector(s, sel)
			} else {
				selectors[i] = unwrapGlobal(s)
			}
		}
		b.WriteString(lead)
		b.WriteString(strings.Join(selectors, ", "))
		b.WriteString(" {")
		b.WriteString(it.body)
		b.WriteByte('}')
	}
	return nil
}

// SplitSelectors splits a selector list on top-level commas.
func SplitSelectors(list string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(list); i++ {
		switch c := list[i]; c {
		case '\\':
			i++
		case '"', '\'':
			if end, ok := skipString(list, i); ok {
				i = end
			}
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(list[start:]); last != "" || len(out) == 0 {
		out = append(out, last)
	}
	return out
}

// ScopeSelector adds attr to the last compound selector of s. Inside that
// compound the attribute goes before a "::" pseudo-element if there is
// one, otherwise before the first ":" pseudo-class, otherwise at the end.
// A last compound wrapped in :global(...) is left unscoped.
func ScopeSelector(s, attr string) string {
	s = strings.TrimSpace(s)
	start := lastCompound(s)
	head, last := s[:start], s[start:]

	if strings.HasPrefix(last, ":global(") {
		return unwrapGlobal(s)
	}

	at := len(last)
	if i := indexTopLevel(last, "::"); i >= 0 {
		at = i
	} else if i := indexTopLevel(last, ":"); i >= 0 {
		at = i
	}
	return unwrapGlobal(head) + last[:at] + attr + last[at:]
}

// lastCompound returns the offset where the last compound selector of s
// starts, i.e. just after the last top-level combinator.
func lastCompound(s string) int {
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
		case '"', '\'':
			if end, ok := skipString(s, i); ok {
				i = end
			}
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ' ', '\t', '\n', '\r', '>', '+', '~':
			if depth == 0 {
				start = i + 1
			}
		}
	}
	return start
}

// indexTopLevel finds needle outside brackets, parentheses and strings.
func indexTopLevel(s, needle string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
			continue
		case '"', '\'':
			if end, ok := skipString(s, i); ok {
				i = end
			}
			continue
		case '(', '[':
			if depth == 0 && strings.HasPrefix(s[i:], needle) {
				return i
			}
			depth++
			continue
		case ')', ']':
			depth--
			continue
		}
		if depth == 0 && strings.HasPrefix(s[i:], needle) {
			return i
		}
	}
	return -1
}

// unwrapGlobal replaces every :global(x) with x.
func unwrapGlobal(s string) string {
	for {
		i := strings.Index(s, ":global(")
		if i < 0 {
			return s
		}
		open := i + len(":global")
		depth, close := 0, -1
		for j := open; j < len(s) && close < 0; j++ {
			switch s[j] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					close = j
				}
			}
		}
		if close < 0 {
			return s
		}
		s = s[:i] + s[open+1:close] + s[close+1:]
	}
}

// collectNames records the .class and #id names used in a selector.
func collectNames(s string, classes, ids map[string]bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
		case '"', '\'':
			if end, ok := skipString(s, i); ok {
				i = end
			}
		case '[':
			depth++
		case ']':
			depth--
		case '.', '#':
			if depth > 0 {
				continue
			}
			name, n := readName(s[i+1:])
			if name == "" {
				continue
			}
			if c == '.' {
				classes[name] = true
			} else {
				ids[name] = true
			}
			i += n
		}
	}
}

// readName reads a CSS identifier, resolving backslash escapes.
func readName(s string) (string, int) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(s[i+1])
			i += 2
		case c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80:
			b.WriteByte(c)
			i++
		default:
			return b.String(), i
		}
	}
	return b.String(), i
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
