package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/registry"
)

const buttonSrc = `package ui

import "github.com/a-h/templ"

//kiln:component
//kiln:default color "blue"
func Button(text string, color string) templ.Component {
	return html!{ <button class={color}>{text}</button> }
}
`

const cardSrc = `package ui

import "github.com/a-h/templ"

//kiln:component
func Card(title string, children templ.Component) templ.Component {
	return html!{ <div><h2>{title}</h2>{children}</div> }
}

func Page() templ.Component {
	return html!{ <main>@Card(title="x") { @Button(text="go") }</main> }
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newScanner(t *testing.T, root string, opts Options) (*Scanner, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	opts.Root = root
	s, err := New(reg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, reg
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	ui := filepath.Join(root, "ui")
	writeFile(t, filepath.Join(ui, "button.kiln"), buttonSrc)
	writeFile(t, filepath.Join(ui, "card.kiln"), cardSrc)
	writeFile(t, filepath.Join(ui, "notes.txt"), "not a source")
	writeFile(t, filepath.Join(ui, "card_kiln.go"), "package ui\n")
	writeFile(t, filepath.Join(root, "_scratch", "x.kiln"), buttonSrc)
	writeFile(t, filepath.Join(root, ".cache", "y.kiln"), buttonSrc)
	writeFile(t, filepath.Join(root, "vendor", "z.kiln"), buttonSrc)
	writeFile(t, filepath.Join(root, "testdata", "w.kiln"), buttonSrc)

	s, reg := newScanner(t, root, Options{})
	files, err := s.ScanDirectory(context.Background())
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(ui, "button.kiln"), files[0].Path)
	assert.Equal(t, filepath.Join(ui, "card.kiln"), files[1].Path)
	for _, f := range files {
		assert.Empty(t, f.Diags)
		assert.NotNil(t, f.Source)
		assert.Len(t, f.Hash, 8)
	}

	assert.Equal(t, 2, reg.Count())
	button, ok := reg.Get(ui, "Button")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ui, "button.kiln"), button.FilePath)
	assert.Equal(t, files[0].Hash, button.Hash)
	assert.False(t, button.LastMod.IsZero())

	card, ok := reg.Get(ui, "Card")
	require.True(t, ok)
	assert.True(t, card.HasChildren())
}

func TestScanExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ui", "button.kiln"), buttonSrc)
	writeFile(t, filepath.Join(root, "ui", "button_old.kiln"), buttonSrc)
	writeFile(t, filepath.Join(root, "legacy", "card.kiln"), cardSrc)

	s, _ := newScanner(t, root, Options{Exclude: []string{"legacy", "*_old.kiln"}})
	paths, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "ui", "button.kiln")}, paths)
}

func TestDiscoverSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "button.kiln"), buttonSrc)
	writeFile(t, filepath.Join(root, "b", "card.kiln"), cardSrc)

	s, _ := newScanner(t, root, Options{})
	paths, err := s.Discover(context.Background(), "b", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "b", "card.kiln")}, paths)
}

func TestDiscoverOutsideRoot(t *testing.T) {
	root := t.TempDir()
	s, _ := newScanner(t, root, Options{})

	_, err := s.Discover(context.Background(), filepath.Dir(root))
	assert.Error(t, err)

	_, err = s.ScanFile(filepath.Join(root, "..", "x.kiln"))
	assert.Error(t, err)
}

func TestScanFileUnchanged(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "button.kiln")
	writeFile(t, path, buttonSrc)

	s, reg := newScanner(t, root, Options{})
	first, err := s.ScanFile(path)
	require.NoError(t, err)
	second, err := s.ScanFile(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Count())
}

func TestScanFileRename(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "button.kiln")
	writeFile(t, path, buttonSrc)

	s, reg := newScanner(t, root, Options{})
	first, err := s.ScanFile(path)
	require.NoError(t, err)

	renamed := `package ui

import "github.com/a-h/templ"

//kiln:component
func Pill(text string) templ.Component {
	return html!{ <span>{text}</span> }
}
`
	writeFile(t, path, renamed)
	second, err := s.ScanFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)

	_, ok := reg.Get(root, "Button")
	assert.False(t, ok)
	_, ok = reg.Get(root, "Pill")
	assert.True(t, ok)
	assert.Equal(t, 1, reg.Count())
}

func TestScanFileGoSyntaxError(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.kiln")
	writeFile(t, path, "package ui\n\nfunc Broken( {\n\treturn html!{ <p>\"x\"</p> }\n}\n")

	s, reg := newScanner(t, root, Options{})
	f, err := s.ScanFile(path)
	require.NoError(t, err)
	assert.Nil(t, f.Source)
	require.NotEmpty(t, f.Diags)
	assert.True(t, f.Diags.HasErrors())
	assert.Equal(t, "go/syntax", f.Diags[0].Rule)
	assert.Equal(t, 0, reg.Count())
}

func TestScanFileMissing(t *testing.T) {
	root := t.TempDir()
	s, _ := newScanner(t, root, Options{})
	_, err := s.ScanFile(filepath.Join(root, "gone.kiln"))
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "button.kiln")
	writeFile(t, path, buttonSrc)

	s, reg := newScanner(t, root, Options{})
	_, err := s.ScanFile(path)
	require.NoError(t, err)

	removed := s.Remove(path)
	require.Len(t, removed, 1)
	assert.Equal(t, "Button", removed[0].Name)
	assert.Equal(t, 0, reg.Count())
	_, ok := s.File(path)
	assert.False(t, ok)
	assert.Empty(t, s.Files())
}

func TestSchemasAndReferences(t *testing.T) {
	root := t.TempDir()
	blog := filepath.Join(root, "blog")
	writeFile(t, filepath.Join(blog, "post.kiln"), "package blog\n\n//kiln:schema\ntype Post struct {\n\tHeadline string\n}\n")
	writeFile(t, filepath.Join(blog, "page.kiln"), cardSrc)
	writeFile(t, filepath.Join(root, "other", "button.kiln"), buttonSrc)

	s, _ := newScanner(t, root, Options{})
	_, err := s.ScanDirectory(context.Background())
	require.NoError(t, err)

	schemas := s.Schemas(blog)
	assert.True(t, schemas("Post"))
	assert.False(t, schemas("Person"))
	assert.False(t, s.Schemas(filepath.Join(root, "other"))("Post"))

	refs := s.References(blog)
	assert.True(t, refs["Card"])
	assert.True(t, refs["Button"])
	assert.True(t, refs["title"])

	assert.Len(t, s.InDir(blog), 2)
}

func TestScanFilesManyWorkers(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		p := filepath.Join(root, name, "button.kiln")
		writeFile(t, p, buttonSrc)
		paths = append(paths, p)
	}

	s, reg := newScanner(t, root, Options{Workers: 2})
	files, err := s.ScanFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, files, 10)
	assert.Equal(t, 10, reg.Count())
	assert.Len(t, reg.InDir(filepath.Join(root, "c")), 1)

	names := reg.Names(filepath.Join(root, "c"))
	assert.Len(t, names, 10, "the own Button plus the other nine packages' ui.Button")
	assert.Contains(t, names, "Button")
	assert.Contains(t, names, "ui.Button")
}

func TestScanFilesCancelled(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "button.kiln")
	writeFile(t, path, buttonSrc)

	s, _ := newScanner(t, root, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ScanFiles(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerPoolStopTwice(t *testing.T) {
	s, _ := newScanner(t, t.TempDir(), Options{Workers: 1})
	s.pool.Stop()
	s.pool.Stop()
	assert.False(t, s.pool.submit(ScanJob{}))
}

func TestHash(t *testing.T) {
	a := Hash([]byte("package ui"))
	assert.Len(t, a, 8)
	assert.Equal(t, a, Hash([]byte("package ui")))
	assert.NotEqual(t, a, Hash([]byte("package ux")))
}
