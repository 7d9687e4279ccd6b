//go:build property

package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/kiln/internal/registry"
)

func componentSource(name string) string {
	return fmt.Sprintf(`package ui

import "github.com/a-h/templ"

//kiln:component
func %s(text string) templ.Component {
	return html!{ <div class="component">{text}</div> }
}
`, name)
}

func componentName() gopter.Gen {
	return gen.Identifier().Map(func(s string) string {
		return "C" + s
	})
}

func TestScannerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("two scanners agree", prop.ForAll(
		func(name string) bool {
			root := t.TempDir()
			if err := os.WriteFile(filepath.Join(root, "c.kiln"), []byte(componentSource(name)), 0o644); err != nil {
				return false
			}

			var counts []int
			var hashes []string
			for i := 0; i < 2; i++ {
				reg := registry.New()
				s, err := New(reg, Options{Root: root})
				if err != nil {
					return false
				}
				files, err := s.ScanDirectory(context.Background())
				_ = s.Close()
				if err != nil || len(files) != 1 {
					return false
				}
				if _, ok := reg.Get(root, name); !ok {
					return false
				}
				counts = append(counts, reg.Count())
				hashes = append(hashes, files[0].Hash)
			}
			return counts[0] == counts[1] && hashes[0] == hashes[1]
		},
		componentName(),
	))

	properties.Property("rescans do not duplicate components", prop.ForAll(
		func(name string, rescans int) bool {
			root := t.TempDir()
			path := filepath.Join(root, "c.kiln")
			if err := os.WriteFile(path, []byte(componentSource(name)), 0o644); err != nil {
				return false
			}
			reg := registry.New()
			s, err := New(reg, Options{Root: root, Workers: 1})
			if err != nil {
				return false
			}
			defer s.Close()
			for i := 0; i < rescans; i++ {
				if _, err := s.ScanFile(path); err != nil {
					return false
				}
			}
			return reg.Count() == 1
		},
		componentName(),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
