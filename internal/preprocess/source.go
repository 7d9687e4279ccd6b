// Package preprocess compiles one .kiln file into the Go file generated
// next to it.
//
// A .kiln file is Go source with html!{...} template literals in
// expression position and //kiln: directives above declarations. Parse
// reads the Go side of the file with every literal blanked out; Compile
// runs each literal through the template pipeline, splices the emitted
// code back in, appends the directive output and formats the result.
package preprocess

import (
	"errors"
	goast "go/ast"
	goparser "go/parser"
	goscanner "go/scanner"
	"go/token"
	"path/filepath"
	"strings"

	"github.com/conneroisu/kiln/internal/bind"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/directive"
	"github.com/conneroisu/kiln/internal/lexer"
)

// Extension is the file extension of kiln sources.
const Extension = ".kiln"

// DefaultSuffix replaces Extension in generated file names.
const DefaultSuffix = "_kiln.go"

// OutputPath returns the generated file for a source: button.kiln becomes
// button_kiln.go.
func OutputPath(path, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return strings.TrimSuffix(path, Extension) + suffix
}

// Source is a parsed .kiln file.
type Source struct {
	Path    string
	Src     []byte
	Regions []lexer.Region
	Fset    *token.FileSet
	// File is the Go side of the source, parsed with every region
	// replaced by nil.
	File *goast.File
	// Imports maps import names to paths.
	Imports map[string]string
	Decls   *directive.Decls
}

// Dir returns the package directory of the source.
func (s *Source) Dir() string { return filepath.Dir(s.Path) }

// Package returns the package name of the source.
func (s *Source) Package() string { return s.File.Name.Name }

// ImportName returns the name the file uses for importPath, or def when
// the file does not import it.
func (s *Source) ImportName(importPath, def string) string {
	for name, p := range s.Imports {
		if p == importPath {
			return name
		}
	}
	return def
}

// Parse finds the template regions of src, parses the Go around them and
// reads its directives. Components found are stamped with the file's
// directory and path. A nil Source is returned when the Go side does not
// parse.
func Parse(path string, src []byte) (*Source, diag.List) {
	regions, diags := lexer.Regions(src)
	if diags.HasErrors() {
		return nil, diags.WithFile(path)
	}

	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, path, lexer.Blank(src, regions), goparser.ParseComments)
	if err != nil {
		return nil, append(diags, goErrors(err)...).WithFile(path)
	}

	decls, dd := directive.Scan(fset, f, src)
	diags = append(diags, dd...)

	abs, _ := filepath.Abs(path)
	if abs == "" {
		abs = path
	}
	for _, c := range decls.Components {
		c.Dir = filepath.Dir(abs)
		c.FilePath = abs
	}

	return &Source{
		Path:    path,
		Src:     src,
		Regions: regions,
		Fset:    fset,
		File:    f,
		Imports: bind.FileImports(f),
		Decls:   decls,
	}, diags.WithFile(path)
}

// goErrors converts go/parser errors to diagnostics.
func goErrors(err error) diag.List {
	var list goscanner.ErrorList
	if !errors.As(err, &list) {
		return diag.List{diag.New("go/syntax", diag.Span{}, err.Error(), "")}
	}
	out := make(diag.List, 0, len(list))
	for _, e := range list {
		off := e.Pos.Offset
		out = append(out, diag.New("go/syntax", diag.Span{Start: off, End: off + 1}, e.Msg,
			"the Go code around the templates must parse"))
	}
	return out
}

// Enclosing returns the name of the func or var declaring region r, or
// the file name when r sits elsewhere.
func (s *Source) Enclosing(r lexer.Region) string {
	tf := s.Fset.File(s.File.Pos())
	if tf == nil {
		return filepath.Base(s.Path)
	}
	pos := tf.Pos(r.Span.Start)
	for _, d := range s.File.Decls {
		if pos < d.Pos() || pos >= d.End() {
			continue
		}
		switch d := d.(type) {
		case *goast.FuncDecl:
			return d.Name.Name
		case *goast.GenDecl:
			for _, spec := range d.Specs {
				vs, ok := spec.(*goast.ValueSpec)
				if ok && pos >= vs.Pos() && pos < vs.End() && len(vs.Names) > 0 {
					return vs.Names[0].Name
				}
			}
		}
	}
	return filepath.Base(s.Path)
}

// References returns the identifiers the file mentions outside its
// declarations' names, including those inside template literals.
func (s *Source) References() map[string]bool {
	refs := make(map[string]bool)
	declared := make(map[*goast.Ident]bool)
	for _, d := range s.File.Decls {
		if fd, ok := d.(*goast.FuncDecl); ok {
			declared[fd.Name] = true
		}
	}
	goast.Inspect(s.File, func(n goast.Node) bool {
		if id, ok := n.(*goast.Ident); ok && !declared[id] {
			refs[id.Name] = true
		}
		return true
	})

	for _, r := range s.Regions {
		var sc goscanner.Scanner
		file := token.NewFileSet().AddFile("", -1, r.Body.Len())
		sc.Init(file, s.Src[r.Body.Start:r.Body.End], nil, 0)
		for {
			_, tok, lit := sc.Scan()
			if tok == token.EOF {
				break
			}
			if tok == token.IDENT {
				refs[lit] = true
			}
		}
	}
	return refs
}
