//go:build property

package css

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func uniqueSorted(names []string) []string {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func TestScopeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every rule carries the scope attribute once", prop.ForAll(
		func(names []string, combinator string) bool {
			var src strings.Builder
			for i, n := range names {
				fmt.Fprintf(&src, ".wrap%d%s.%s { color: red; }\n", i, combinator, n)
			}
			res, err := Scope(src.String(), "s1")
			if err != nil {
				return false
			}
			if strings.Count(res.CSS, "[data-s1]") != len(names) {
				return false
			}
			for _, line := range strings.Split(strings.TrimSpace(res.CSS), "\n") {
				head := line[:strings.Index(line, "{")]
				if !strings.HasSuffix(strings.TrimSpace(head), "[data-s1]") {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Identifier()),
		gen.OneConstOf(" ", " > ", " + ", " ~ "),
	))

	properties.Property("scoping reports the classes a sheet defines", prop.ForAll(
		func(names []string) bool {
			var src strings.Builder
			for _, n := range names {
				fmt.Fprintf(&src, ".%s, #%s:hover { margin: 0; }", n, n)
			}
			res, err := Scope(src.String(), "s2")
			if err != nil {
				return false
			}
			classes, ids, err := Names(src.String())
			if err != nil {
				return false
			}
			want := uniqueSorted(names)
			return equal(res.Classes, want) && equal(res.IDs, want) &&
				equal(classes, want) && equal(ids, want)
		},
		gen.SliceOfN(8, gen.Identifier()),
	))

	properties.Property("declarations are never rewritten", prop.ForAll(
		func(value string) bool {
			src := ".a { content: \"" + value + "\"; }"
			res, err := Scope(src, "s3")
			return err == nil && strings.Contains(res.CSS, "{ content: \""+value+"\"; }")
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
