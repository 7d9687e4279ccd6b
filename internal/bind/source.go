package bind

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/conneroisu/kiln/internal/lexer"
)

// SourceResolver resolves bound types by reading Go source. The package
// being compiled is read from its directory; .kiln files take part with
// their template regions blanked out. Packages named through an import
// are located with golang.org/x/tools/go/packages.
type SourceResolver struct {
	dir string
	// imports maps the import names visible where the binding appears
	// to their import paths.
	imports map[string]string
	overlay map[string][]byte
	fset    *token.FileSet
	locate  func(fromDir, importPath string) (string, error)

	mu    sync.Mutex
	pkgs  map[string]*pkgTypes
	cache map[string]*Struct
}

type pkgTypes struct {
	types   map[string]*ast.TypeSpec
	imports map[*ast.TypeSpec]map[string]string
}

// Option configures a SourceResolver.
type Option func(*SourceResolver)

// WithOverlay supplies file contents that replace, or add to, what is on
// disk. Keys are file paths.
func WithOverlay(files map[string][]byte) Option {
	return func(r *SourceResolver) { r.overlay = files }
}

// WithLocator replaces the go/packages lookup used for imported packages.
func WithLocator(fn func(fromDir, importPath string) (string, error)) Option {
	return func(r *SourceResolver) { r.locate = fn }
}

// NewSourceResolver returns a resolver for bindings written in a file of
// package dir whose imports are given.
func NewSourceResolver(dir string, imports map[string]string, opts ...Option) *SourceResolver {
	r := &SourceResolver{
		dir:     dir,
		imports: imports,
		fset:    token.NewFileSet(),
		locate:  LocatePackage,
		pkgs:    make(map[string]*pkgTypes),
		cache:   make(map[string]*Struct),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LocatePackage returns the directory of an imported package.
func LocatePackage(fromDir, importPath string) (string, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles,
		Dir:  fromDir,
	}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return "", fmt.Errorf("package %s not found", importPath)
	}
	p := pkgs[0]
	for _, files := range [][]string{p.GoFiles, p.OtherFiles, p.IgnoredFiles} {
		if len(files) > 0 {
			return filepath.Dir(files[0]), nil
		}
	}
	if len(p.Errors) > 0 {
		return "", fmt.Errorf("package %s: %s", importPath, p.Errors[0].Msg)
	}
	return "", fmt.Errorf("package %s has no files", importPath)
}

// Resolve implements Resolver.
func (r *SourceResolver) Resolve(typeExpr string) (*Struct, error) {
	expr, err := parser.ParseExpr(typeExpr)
	if err != nil {
		return nil, &TypeError{Expr: typeExpr, Reason: "not a type expression"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.resolveExpr(r.dir, r.imports, expr)
	if err != nil {
		return nil, &TypeError{Expr: typeExpr, Reason: err.Error()}
	}
	if s == nil {
		return nil, &TypeError{Expr: typeExpr, Reason: "not a struct type"}
	}
	return s, nil
}

// resolveExpr returns nil, nil for types that are not structs.
func (r *SourceResolver) resolveExpr(dir string, imports map[string]string, expr ast.Expr) (*Struct, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return r.resolveExpr(dir, imports, e.X)
	case *ast.StarExpr:
		return r.resolveExpr(dir, imports, e.X)
	case *ast.Ident:
		return r.resolveNamed(dir, e.Name)
	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, nil
		}
		importPath, ok := imports[x.Name]
		if !ok {
			return nil, fmt.Errorf("package %s is not imported", x.Name)
		}
		if isStdlib(importPath) {
			return nil, nil
		}
		pkgDir, err := r.locate(dir, importPath)
		if err != nil {
			return nil, err
		}
		return r.resolveNamed(pkgDir, e.Sel.Name)
	case *ast.StructType:
		return r.build("struct", dir, imports, e)
	}
	return nil, nil
}

func (r *SourceResolver) resolveNamed(dir, name string) (*Struct, error) {
	key := dir + "#" + name
	if s, ok := r.cache[key]; ok {
		return s, nil
	}

	pkg, err := r.load(dir)
	if err != nil {
		return nil, err
	}
	spec, ok := pkg.types[name]
	if !ok {
		if isPredeclared(name) {
			return nil, nil
		}
		return nil, fmt.Errorf("type %s not found in %s", name, dir)
	}

	st, ok := spec.Type.(*ast.StructType)
	if !ok {
		// type Admin User, type ID string, ...
		r.cache[key] = nil
		s, err := r.resolveExpr(dir, pkg.imports[spec], spec.Type)
		r.cache[key] = s
		return s, err
	}

	// Registered before the fields are filled so self-referencing types
	// terminate.
	s := &Struct{Name: name}
	r.cache[key] = s
	built, err := r.build(name, dir, pkg.imports[spec], st)
	if err != nil {
		delete(r.cache, key)
		return nil, err
	}
	s.Fields = built.Fields
	return s, nil
}

func (r *SourceResolver) build(name, dir string, imports map[string]string, st *ast.StructType) (*Struct, error) {
	s := &Struct{Name: name}
	for _, field := range st.Fields.List {
		tags := parseTag(field.Tag)
		formName, formSkip := tagName(tags, "form")
		jsonName, jsonSkip := tagName(tags, "json")
		if formSkip || (jsonSkip && formName == "") {
			continue
		}

		if len(field.Names) == 0 {
			embedded, err := r.resolveExpr(dir, imports, field.Type)
			if err != nil {
				embedded = nil
			}
			typeName := embeddedName(field.Type)
			if formName == "" && jsonName == "" {
				if embedded != nil {
					s.Fields = append(s.Fields, embedded.Fields...)
				}
				continue
			}
			s.Fields = append(s.Fields, Field{Name: typeName, Form: formName, JSON: jsonName, Struct: embedded})
			continue
		}

		nested, err := r.resolveExpr(dir, imports, field.Type)
		if err != nil {
			nested = nil
		}
		for _, n := range field.Names {
			if !n.IsExported() {
				continue
			}
			s.Fields = append(s.Fields, Field{Name: n.Name, Form: formName, JSON: jsonName, Struct: nested})
		}
	}
	return s, nil
}

// load parses the type declarations of the package in dir.
func (r *SourceResolver) load(dir string) (*pkgTypes, error) {
	if p, ok := r.pkgs[dir]; ok {
		return p, nil
	}

	files, err := r.sources(dir)
	if err != nil {
		return nil, err
	}

	p := &pkgTypes{
		types:   make(map[string]*ast.TypeSpec),
		imports: make(map[*ast.TypeSpec]map[string]string),
	}
	for _, name := range sortedNames(files) {
		f, err := parser.ParseFile(r.fset, name, files[name], parser.SkipObjectResolution)
		if err != nil {
			continue
		}
		imports := FileImports(f)
		for _, decl := range f.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*ast.TypeSpec)
				if _, dup := p.types[ts.Name.Name]; dup {
					continue
				}
				p.types[ts.Name.Name] = ts
				p.imports[ts] = imports
			}
		}
	}
	r.pkgs[dir] = p
	return p, nil
}

// sources returns the Go text of every file in dir that declares types:
// .go files (tests excluded) and .kiln files with regions blanked. A
// generated x_kiln.go is skipped when x.kiln is present.
func (r *SourceResolver) sources(dir string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	entries, err := os.ReadDir(dir)
	if err != nil && len(r.overlay) == 0 {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !isSource(p) {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out[p] = data
	}
	for p, data := range r.overlay {
		if filepath.Dir(p) == filepath.Clean(dir) && isSource(p) {
			out[p] = data
		}
	}

	for p, data := range out {
		if strings.HasSuffix(p, ".kiln") {
			regions, _ := lexer.Regions(data)
			out[p] = lexer.Blank(data, regions)
			delete(out, strings.TrimSuffix(p, ".kiln")+"_kiln.go")
		}
	}
	return out, nil
}

func isSource(p string) bool {
	switch {
	case strings.HasSuffix(p, "_test.go"):
		return false
	case strings.HasSuffix(p, ".go"), strings.HasSuffix(p, ".kiln"):
		return true
	}
	return false
}

// FileImports maps the names a file uses for its imports to their paths.
// Unnamed imports use the last path element.
func FileImports(f *ast.File) map[string]string {
	out := make(map[string]string, len(f.Imports))
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := path.Base(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		out[name] = p
	}
	return out
}

func parseTag(lit *ast.BasicLit) reflect.StructTag {
	if lit == nil {
		return ""
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return ""
	}
	return reflect.StructTag(s)
}

// tagName returns the name part of a struct tag key and whether the tag
// is "-".
func tagName(tag reflect.StructTag, key string) (string, bool) {
	v, ok := tag.Lookup(key)
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(v, ",")
	if name == "-" {
		return "", true
	}
	return name, false
}

func embeddedName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(e.X)
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return e.Sel.Name
	}
	return ""
}

// isStdlib reports whether an import path belongs to the standard
// library, whose types are never bound.
func isStdlib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

func isPredeclared(name string) bool {
	switch name {
	case "any", "bool", "byte", "complex64", "complex128", "error", "float32", "float64",
		"int", "int8", "int16", "int32", "int64", "rune", "string",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr":
		return true
	}
	return false
}

func sortedNames(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
