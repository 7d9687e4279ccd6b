package css

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/conneroisu/kiln/internal/suggest"
)

// Problem is a validation finding at a byte offset of the sheet.
type Problem struct {
	Rule    string
	Offset  int
	Message string
	Help    string
	Warning bool
}

var (
	hexColor = regexp.MustCompile(`#([0-9A-Za-z]+)\b`)
	unitTypo = regexp.MustCompile(`(?i)\b\d*\.?\d+(pz|pxs|pxx|ppx|xp|rme|mer|ems|pts|vws|vhs)\b`)
	propName = regexp.MustCompile(`^-?[A-Za-z][A-Za-z0-9-]*$`)
)

var unitFixes = map[string]string{
	"pz":  "px", "pxs": "px", "pxx": "px", "ppx": "px", "xp": "px",
	"rme": "rem", "mer": "rem", "ems": "em", "pts": "pt",
	"vws": "vw", "vhs": "vh",
}

// Validate checks brace balance, declaration syntax, hex colour lengths
// and unit typos. Unknown property names are reported as warnings.
func Validate(src string) []Problem {
	var problems []Problem
	validateBlock(src, 0, false, &problems)
	return problems
}

func validateBlock(src string, base int, inRule bool, problems *[]Problem) {
	items, err := split(src, base)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			*problems = append(*problems, Problem{
				Rule:    "css/unbalanced",
				Offset:  se.Offset,
				Message: se.Message,
				Help:    "every '{' needs a matching '}'",
			})
		}
		return
	}

	for _, it := range items {
		if it.kind == itemText {
			if inRule {
				validateDeclarations(it.text, it.start, problems)
			} else if stmt := strings.TrimSpace(stripComments(it.text)); stmt != "" && !strings.HasPrefix(stmt, "@") {
				*problems = append(*problems, Problem{
					Rule:    "css/declaration-syntax",
					Offset:  it.start + leadingSpace(it.text),
					Message: fmt.Sprintf("declaration %q outside of a rule", strings.TrimSuffix(stmt, ";")),
					Help:    "wrap declarations in a selector block",
				})
			}
			continue
		}

		prelude := strings.TrimSpace(stripComments(it.text))
		if prelude == "" {
			*problems = append(*problems, Problem{
				Rule:    "css/empty-selector",
				Offset:  it.bodyAt - 1,
				Message: "rule without a selector",
				Help:    "add a selector before '{'",
			})
		}
		if strings.HasPrefix(prelude, "@") {
			name := atRuleName(prelude)
			switch {
			case groupingRules[name]:
				validateBlock(it.body, it.bodyAt, false, problems)
			case isKeyframes(name):
				validateBlock(it.body, it.bodyAt, false, problems)
			default:
				validateBlock(it.body, it.bodyAt, true, problems)
			}
			continue
		}
		validateBlock(it.body, it.bodyAt, true, problems)
	}
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\r\n"))
}

// validateDeclarations checks a run of "prop: value;" text.
func validateDeclarations(text string, base int, problems *[]Problem) {
	clean := stripComments(text)
	offset := 0
	for _, decl := range splitDeclarations(clean) {
		at := base + offset + leadingSpace(decl)
		offset += len(decl) + 1
		d := strings.TrimSpace(decl)
		if d == "" {
			continue
		}

		colon := strings.IndexByte(d, ':')
		if colon < 0 {
			*problems = append(*problems, Problem{
				Rule:    "css/declaration-syntax",
				Offset:  at,
				Message: fmt.Sprintf("expected 'property: value', found %q", d),
				Help:    "separate the property and its value with ':'",
			})
			continue
		}

		prop := strings.TrimSpace(d[:colon])
		value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(d[colon+1:]), "!important"))
		*problems = append(*problems, checkDeclaration(prop, value, at)...)
	}
}

func splitDeclarations(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
		case '"', '\'':
			if end, ok := skipString(s, i); ok {
				i = end
			}
		case '(':
			depth++
		case ')':
			depth--
		case ';':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func checkDeclaration(prop, value string, at int) []Problem {
	var out []Problem
	add := func(rule, msg, help string, warning bool) {
		out = append(out, Problem{Rule: rule, Offset: at, Message: msg, Help: help, Warning: warning})
	}

	if !strings.HasPrefix(prop, "--") && !propName.MatchString(prop) {
		add("css/declaration-syntax", fmt.Sprintf("invalid property name %q", prop),
			"property names contain only letters, digits and '-'", false)
		return out
	}
	if value == "" {
		add("css/empty-value", fmt.Sprintf("property %q has no value", prop), "give the property a value or remove it", false)
		return out
	}
	if strings.HasPrefix(prop, "--") {
		return out
	}
	if strings.Trim(value, ".,:;!?#{}()[]'\"") == "" {
		add("css/malformed-value", fmt.Sprintf("value %q of %q is only punctuation", value, prop), "", false)
		return out
	}

	hexes := hexColor.FindAllStringSubmatch(value, -1)
	if strings.Contains(value, "url(") {
		hexes = nil
	}
	for _, m := range hexes {
		hex := m[1]
		if !isHex(hex) {
			add("css/hex-color", fmt.Sprintf("invalid hex color #%s: contains non-hex characters", hex),
				"hex colors use the digits 0-9 and letters a-f", false)
			continue
		}
		switch len(hex) {
		case 3, 4, 6, 8:
		default:
			add("css/hex-color", fmt.Sprintf("invalid hex color length #%s", hex),
				"hex colors have 3, 4, 6 or 8 digits", false)
		}
	}

	for _, m := range unitTypo.FindAllStringSubmatch(value, -1) {
		unit := strings.ToLower(m[1])
		add("css/unit-typo", fmt.Sprintf("unknown unit %q in %q", m[1], value),
			fmt.Sprintf("did you mean %q?", unitFixes[unit]), false)
	}

	if !IsKnownProperty(prop) {
		help := "check the property name for typos"
		if s, ok := suggest.Closest(prop, KnownProperties()); ok {
			help = fmt.Sprintf("did you mean %q?", s)
		}
		add("css/unknown-property", fmt.Sprintf("unknown property %q", prop), help, true)
	}
	return out
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
