package diag

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "fatal", SeverityFatal.String())
	assert.Equal(t, "unknown", Severity(9).String())
}

func TestSpan(t *testing.T) {
	s := Span{Start: 4, End: 10}
	assert.Equal(t, 6, s.Len())
	assert.False(t, s.IsZero())
	assert.True(t, s.Contains(Span{Start: 5, End: 10}))
	assert.False(t, s.Contains(Span{Start: 3, End: 6}))

	assert.Equal(t, Span{Start: 2, End: 10}, Join(s, Span{Start: 2, End: 5}))
	assert.Equal(t, s, Join(Span{}, s))
	assert.Equal(t, s, Join(s, Span{}))
}

func TestListSortAndFilter(t *testing.T) {
	l := List{
		Warning("css/unused-selector", Span{Start: 9}, "unused", ""),
		New("html/nested-form", Span{Start: 9}, "nested", ""),
		New("lex/unquoted-text", Span{Start: 2}, "text", ""),
		{Rule: "x", Severity: SeverityInfo, File: "a.kiln", Span: Span{Start: 50}},
	}
	l.Sort()

	var rules []string
	for _, d := range l {
		rules = append(rules, d.Rule)
	}
	want := []string{"lex/unquoted-text", "html/nested-form", "css/unused-selector", "x"}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("sort order (-want +got):\n%s", diff)
	}

	assert.True(t, l.HasErrors())
	assert.Len(t, l.Errors(), 2)
	assert.Len(t, l.Warnings(), 1)
	assert.False(t, l.Warnings().HasErrors())
	assert.NoError(t, l.Warnings().Err())
}

func TestListError(t *testing.T) {
	assert.Equal(t, "no diagnostics", List{}.Error())

	d := New("html/nested-form", Span{Start: 7, End: 13}, "nested <form>", "move it")
	d.File = "ui/page.kiln"
	assert.Equal(t, "ui/page.kiln:@7: error: nested <form> [html/nested-form]", d.Error())

	l := List{d, Warning("w", Span{}, "careful", "")}
	assert.Equal(t, d.Error()+" (and 1 more)", l.Error())

	err := l.Err()
	require.Error(t, err)
	var got List
	require.True(t, errors.As(err, &got))
	assert.Len(t, got, 2)
}

func TestListWithFile(t *testing.T) {
	l := List{New("a", Span{}, "a", ""), {Rule: "b", File: "other.kiln"}}
	out := l.WithFile("page.kiln")
	assert.Equal(t, "page.kiln", out[0].File)
	assert.Equal(t, "other.kiln", out[1].File)
	assert.Empty(t, l[0].File, "the original is untouched")
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := Warning("w", Span{Start: i}, fmt.Sprintf("w%d", i), "")
			d.File = fmt.Sprintf("f%d.kiln", i%2)
			c.Add(d)
		}(i)
	}
	wg.Wait()

	all := c.Diagnostics()
	require.Len(t, all, 20)
	assert.False(t, c.HasErrors())
	assert.Len(t, c.ByFile("f0.kiln"), 10)
	assert.Equal(t, "f0.kiln", all[0].File)
	assert.Equal(t, 0, all[0].Span.Start)

	c.Add(New("e", Span{}, "boom", ""))
	assert.True(t, c.HasErrors())
}

func TestSourcesRender(t *testing.T) {
	src := "package ui\n\nvar Bad = html!{ <form><form></form></form> }\n"
	s := NewSources()
	s.Add("bad.kiln", []byte(src))

	start := bytes.Index([]byte(src), []byte("<form><form>")) + len("<form>")
	d := New("html/nested-form", Span{Start: start, End: start + len("<form>")},
		"<form> may not contain another <form>", "move the inner form outside")
	d.File = "bad.kiln"

	pos := s.Position("bad.kiln", start)
	assert.Equal(t, 3, pos.Line)
	assert.Equal(t, 24, pos.Column)

	var out bytes.Buffer
	s.Render(&out, d)
	want := "bad.kiln:3:24: error: <form> may not contain another <form> [html/nested-form]\n" +
		"    var Bad = html!{ <form><form></form></form> }\n" +
		"                           ^^^^^^\n" +
		"    help: move the inner form outside\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("render (-want +got):\n%s", diff)
	}
}

func TestSourcesUnknownFile(t *testing.T) {
	s := NewSources()
	pos := s.Position("missing.kiln", 12)
	assert.Equal(t, "missing.kiln", pos.Filename)
	assert.Equal(t, 0, pos.Line)

	var out bytes.Buffer
	d := Warning("w", Span{Start: 12}, "careful", "")
	d.File = "missing.kiln"
	s.RenderAll(&out, List{d})
	assert.Equal(t, "missing.kiln:0:0: warning: careful [w]\n", out.String())
}

func TestKilnError(t *testing.T) {
	cause := fs.ErrNotExist
	err := NewIOError(ErrCodeFileRead, "reading source", cause).
		WithLocation("ui/card.kiln", 3, 7).
		WithComponent("scanner").
		WithContext("attempt", 1)

	assert.Equal(t, "[ERR_FILE_READ] component:scanner ui/card.kiln:3:7 reading source: file does not exist", err.Error())
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, 1, err.Context["attempt"])

	wrapped := fmt.Errorf("build: %w", err)
	got, ok := GetKilnError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeIO, got.Type)

	assert.ErrorIs(t, wrapped, &KilnError{Type: ErrorTypeIO, Code: ErrCodeFileRead})
	assert.NotErrorIs(t, wrapped, &KilnError{Type: ErrorTypeConfig, Code: ErrCodeFileRead})
	_, ok = GetKilnError(errors.New("plain"))
	assert.False(t, ok)
}

func TestKilnErrorConstructors(t *testing.T) {
	tests := []struct {
		err  *KilnError
		want ErrorType
	}{
		{NewIOError(ErrCodeFileWrite, "m", nil), ErrorTypeIO},
		{NewBuildError(ErrCodeCompile, "m", nil), ErrorTypeBuild},
		{NewConfigError(ErrCodeInvalidConfig, "m", nil), ErrorTypeConfig},
		{NewGenerateError(ErrCodeFormat, "m", nil), ErrorTypeGenerate},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Type)
			assert.Equal(t, "["+tt.err.Code+"] m", tt.err.Error())
		})
	}
}
