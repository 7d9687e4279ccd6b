// Package diag carries compile-time diagnostics for the template pipeline.
//
// Every stage reports problems as Diagnostic values anchored to a byte span
// of the .kiln source. Diagnostics are collected per file, sorted by
// position and rendered in the usual file:line:col form so editors and CI
// logs can jump straight to the offending markup.
package diag

import (
	"fmt"
	"go/token"
	"io"
	"sort"
	"strings"
	"sync"
)

// Severity represents the severity of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) in a source file.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// IsZero reports whether the span is unset.
func (s Span) IsZero() bool { return s.Start == 0 && s.End == 0 }

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool { return o.Start >= s.Start && o.End <= s.End }

// Join returns the smallest span covering both a and b.
func Join(a, b Span) Span {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	out := a
	if b.Start < out.Start {
		out.Start = b.Start
	}
	if b.End > out.End {
		out.End = b.End
	}
	return out
}

// Diagnostic is a single problem found while compiling a template.
type Diagnostic struct {
	Rule     string
	Severity Severity
	Summary  string
	Help     string
	File     string
	Span     Span
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.File != "" {
		fmt.Fprintf(&b, "%s:@%d: ", d.File, d.Span.Start)
	}
	fmt.Fprintf(&b, "%s: %s", d.Severity, d.Summary)
	if d.Rule != "" {
		fmt.Fprintf(&b, " [%s]", d.Rule)
	}
	return b.String()
}

// New creates an error-level diagnostic.
func New(rule string, span Span, summary, help string) Diagnostic {
	return Diagnostic{
		Rule:     rule,
		Severity: SeverityError,
		Summary:  summary,
		Help:     help,
		Span:     span,
	}
}

// Warning creates a warning-level diagnostic.
func Warning(rule string, span Span, summary, help string) Diagnostic {
	d := New(rule, span, summary, help)
	d.Severity = SeverityWarning
	return d
}

// Info creates an info-level diagnostic.
func Info(rule string, span Span, summary, help string) Diagnostic {
	d := New(rule, span, summary, help)
	d.Severity = SeverityInfo
	return d
}

// List is an ordered set of diagnostics. A List with at least one error is
// itself usable as an error.
type List []Diagnostic

// Error implements the error interface.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
}

// Sort orders the list by file and position, errors first on ties.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].File != l[j].File {
			return l[i].File < l[j].File
		}
		if l[i].Span.Start != l[j].Span.Start {
			return l[i].Span.Start < l[j].Span.Start
		}
		return l[i].Severity > l[j].Severity
	})
}

// HasErrors reports whether any diagnostic is error level or above.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-level diagnostics.
func (l List) Errors() List {
	return l.filter(func(d Diagnostic) bool { return d.Severity >= SeverityError })
}

// Warnings returns the warning-level diagnostics.
func (l List) Warnings() List {
	return l.filter(func(d Diagnostic) bool { return d.Severity == SeverityWarning })
}

func (l List) filter(keep func(Diagnostic) bool) List {
	var out List
	for _, d := range l {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Err returns the list as an error when it holds errors and nil otherwise.
func (l List) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// WithFile returns a copy of the list with File set on every entry that
// lacks one.
func (l List) WithFile(file string) List {
	out := make(List, len(l))
	for i, d := range l {
		if d.File == "" {
			d.File = file
		}
		out[i] = d
	}
	return out
}

// Collector collects diagnostics from concurrent compilations.
type Collector struct {
	diags List
	mutex sync.RWMutex
}

// NewCollector creates a new diagnostic collector.
func NewCollector() *Collector {
	return &Collector{diags: make(List, 0)}
}

// Add appends diagnostics to the collector.
func (c *Collector) Add(ds ...Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diags = append(c.diags, ds...)
}

// Diagnostics returns a sorted copy of everything collected.
func (c *Collector) Diagnostics() List {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make(List, len(c.diags))
	copy(out, c.diags)
	out.Sort()
	return out
}

// HasErrors returns true if any collected diagnostic is an error.
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.diags.HasErrors()
}

// ByFile returns the diagnostics reported for a specific file.
func (c *Collector) ByFile(file string) List {
	return c.Diagnostics().filter(func(d Diagnostic) bool { return d.File == file })
}

// Sources maps file names to their contents so diagnostics can be rendered
// with line and column information.
type Sources struct {
	fset  *token.FileSet
	files map[string]*token.File
	src   map[string][]byte
}

// NewSources creates an empty source table.
func NewSources() *Sources {
	return &Sources{
		fset:  token.NewFileSet(),
		files: make(map[string]*token.File),
		src:   make(map[string][]byte),
	}
}

// Add registers the contents of a file.
func (s *Sources) Add(name string, src []byte) {
	f := s.fset.AddFile(name, -1, len(src))
	f.SetLinesForContent(src)
	s.files[name] = f
	s.src[name] = src
}

// Position converts a byte offset in a file to a line and column.
func (s *Sources) Position(name string, offset int) token.Position {
	f, ok := s.files[name]
	if !ok {
		return token.Position{Filename: name, Offset: offset}
	}
	if offset > f.Size() {
		offset = f.Size()
	}
	return f.Position(f.Pos(offset))
}

// Render writes a diagnostic with its position, help line and the source
// line it points at.
func (s *Sources) Render(w io.Writer, d Diagnostic) {
	pos := s.Position(d.File, d.Span.Start)
	fmt.Fprintf(w, "%s:%d:%d: %s: %s", d.File, pos.Line, pos.Column, d.Severity, d.Summary)
	if d.Rule != "" {
		fmt.Fprintf(w, " [%s]", d.Rule)
	}
	fmt.Fprintln(w)

	if line, ok := s.line(d.File, pos.Line); ok {
		fmt.Fprintf(w, "    %s\n", line)
		width := d.Span.Len()
		if width < 1 {
			width = 1
		}
		if rest := len(line) - (pos.Column - 1); width > rest && rest > 0 {
			width = rest
		}
		fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", pos.Column-1), strings.Repeat("^", width))
	}
	if d.Help != "" {
		fmt.Fprintf(w, "    help: %s\n", d.Help)
	}
}

// RenderAll renders every diagnostic in the list.
func (s *Sources) RenderAll(w io.Writer, l List) {
	for _, d := range l {
		s.Render(w, d)
	}
}

func (s *Sources) line(name string, n int) (string, bool) {
	src, ok := s.src[name]
	if !ok || n < 1 {
		return "", false
	}
	lines := strings.Split(string(src), "\n")
	if n > len(lines) {
		return "", false
	}
	return strings.ReplaceAll(lines[n-1], "\t", " "), true
}
