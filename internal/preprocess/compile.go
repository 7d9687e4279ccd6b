package preprocess

import (
	"bytes"
	"context"
	"fmt"
	goast "go/ast"
	"go/format"
	goparser "go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/bind"
	"github.com/conneroisu/kiln/internal/css"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/directive"
	"github.com/conneroisu/kiln/internal/emit"
	"github.com/conneroisu/kiln/internal/lexer"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/parser"
	"github.com/conneroisu/kiln/internal/registry"
	"github.com/conneroisu/kiln/internal/resolve"
	"github.com/conneroisu/kiln/internal/scope"
	"github.com/conneroisu/kiln/internal/validate"
)

// Options configure the compilation of one file.
type Options struct {
	// Root is the module root. Scope identifiers are keyed by the source
	// path relative to it, and <style src="/x.css"> resolves from it.
	Root string
	// Components is the component registry. Nil leaves every call
	// unresolved.
	Components resolve.Components
	// Scopes allocates scope identifiers. A private allocator is used
	// when nil.
	Scopes *scope.Allocator
	// Binder resolves <form bind={T}>. Defaults to reading the Go source
	// of the file's package.
	Binder bind.Resolver
	// Schemas reports whether another file of the package declares a
	// //kiln:schema type with the given name.
	Schemas func(name string) bool
	// ReadFile reads stylesheets. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)
	Logger   logging.Logger
}

// Result is the outcome of compiling one file.
type Result struct {
	// Code is the formatted Go file. Nil when Diags has errors.
	Code []byte
	// Deps are the stylesheet files the templates read.
	Deps []string
	// Calls are the components the templates call.
	Calls []registry.Key
	// Edges link the func enclosing each template to the components it
	// calls.
	Edges []registry.Edge
	Diags diag.List
}

// OK reports whether the file compiled.
func (r *Result) OK() bool { return r.Code != nil && !r.Diags.HasErrors() }

// File parses and compiles src.
func File(ctx context.Context, path string, src []byte, opts Options) (*Result, error) {
	s, diags := Parse(path, src)
	if s == nil {
		return &Result{Diags: diags}, nil
	}
	res, err := Compile(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	res.Diags = append(diags, res.Diags...)
	res.Diags.Sort()
	if res.Diags.HasErrors() {
		res.Code = nil
	}
	return res, nil
}

// Compile compiles every region of s and assembles the generated file.
// Template problems are returned as diagnostics; the error is reserved
// for failures to produce Go from a tree that compiled.
func Compile(ctx context.Context, s *Source, opts Options) (*Result, error) {
	c := &compiler{
		src:  s,
		opts: opts,
		log:  logging.OrNop(opts.Logger).WithComponent("preprocess").With("file", s.Path),
	}
	if c.opts.Scopes == nil {
		c.opts.Scopes = scope.NewAllocator()
	}
	if c.opts.Binder == nil {
		c.opts.Binder = bind.NewSourceResolver(s.Dir(), s.Imports)
	}
	c.resolver = &resolve.Resolver{Dir: c.dir(), Components: opts.Components, Imports: s.Imports}

	res := &Result{}
	codes := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, out := c.region(ctx, r)
		codes[i] = code
		res.Deps = append(res.Deps, out.deps...)
		res.Calls = append(res.Calls, out.calls...)
		from := registry.Key{Dir: c.dir(), Name: s.Enclosing(r)}
		for _, to := range out.calls {
			res.Edges = append(res.Edges, registry.Edge{From: from, To: to})
		}
		res.Diags = append(res.Diags, out.diags...)
	}
	res.Deps = dedupe(res.Deps)
	res.Diags = res.Diags.WithFile(s.Path)
	res.Diags.Sort()
	if res.Diags.HasErrors() {
		return res, nil
	}

	code, err := c.assemble(codes)
	if err != nil {
		return nil, err
	}
	res.Code = code
	return res, nil
}

type compiler struct {
	src      *Source
	opts     Options
	log      logging.Logger
	resolver *resolve.Resolver
}

// dir is the absolute package directory, matching registry entries.
func (c *compiler) dir() string {
	if abs, err := filepath.Abs(c.src.Dir()); err == nil {
		return abs
	}
	return c.src.Dir()
}

func (c *compiler) scopeKey(index int) scope.Key {
	file := c.src.Path
	if c.opts.Root != "" {
		if rel, err := filepath.Rel(c.opts.Root, file); err == nil {
			file = rel
		}
	}
	return scope.Key{File: file, Index: index}
}

type regionOutput struct {
	deps  []string
	calls []registry.Key
	diags diag.List
}

// region runs one template literal through the pipeline.
func (c *compiler) region(ctx context.Context, r lexer.Region) (string, regionOutput) {
	var out regionOutput
	log := c.log.With("region", r.Index)

	nodes, diags := parser.Parse(c.src.Src, r.Body)
	out.diags = append(out.diags, diags...)
	if diags.HasErrors() {
		log.Debug(ctx, "region did not parse", "errors", len(diags.Errors()))
		return "", out
	}

	deps, loadDiags := c.loadStyles(nodes)
	out.deps = deps
	out.diags = append(out.diags, loadDiags...)

	out.diags = append(out.diags, validate.Validate(nodes, validate.Options{
		Params: c.resolver.Params,
		Binder: c.opts.Binder,
	})...)

	id, scopeDiags := c.scopeStyles(nodes, r.Index)
	out.diags = append(out.diags, scopeDiags...)

	resolved := c.resolver.Resolve(nodes)
	out.calls = resolved.Calls
	out.diags = append(out.diags, resolved.Diags...)

	if out.diags.HasErrors() {
		log.Debug(ctx, "region rejected", "errors", len(out.diags.Errors()))
		return "", out
	}

	code, err := emit.Component(nodes, emit.Options{
		Scope:   id,
		Runtime: c.src.ImportName(directive.RuntimePath, emit.RuntimeName),
		Templ:   c.src.ImportName(directive.TemplPath, emit.TemplName),
	})
	if err != nil {
		out.diags = append(out.diags, diag.New("emit/failed", r.Span, err.Error(), ""))
		return "", out
	}
	log.Debug(ctx, "region compiled", "scope", id, "calls", len(out.calls))
	return code, out
}

// loadStyles reads the file behind every <style src>.
func (c *compiler) loadStyles(nodes []ast.Node) ([]string, diag.List) {
	read := c.opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	var (
		deps  []string
		diags diag.List
	)
	ast.Inspect(nodes, func(n ast.Node, _ []ast.Node) bool {
		st, ok := n.(*ast.Style)
		if !ok || st.Source != ast.StyleFile {
			return true
		}
		p := c.stylePath(st.Path)
		deps = append(deps, p)
		data, err := read(p)
		if err != nil {
			diags = append(diags, diag.New("css/missing-file", st.Pos,
				fmt.Sprintf("cannot read stylesheet %s", st.Path),
				"src paths resolve from the .kiln file, or from the module root when they start with /"))
			return true
		}
		st.CSS = string(data)
		return true
	})
	return deps, diags
}

func (c *compiler) stylePath(src string) string {
	if strings.HasPrefix(src, "/") {
		root := c.opts.Root
		if root == "" {
			root = c.src.Dir()
		}
		return filepath.Join(root, filepath.FromSlash(src))
	}
	return filepath.Join(c.src.Dir(), filepath.FromSlash(src))
}

func isGlobal(st *ast.Style) bool {
	return st.Global || (st.Source == ast.StyleFile && css.IsGlobalFile(st.Path))
}

func isScoped(st *ast.Style) bool {
	return !isGlobal(st) && (st.Source == ast.StyleFile || st.Scoped)
}

// scopeStyles validates and rewrites the scoped sheets of a template. It
// returns the scope identifier, empty when nothing is scoped.
func (c *compiler) scopeStyles(nodes []ast.Node, index int) (string, diag.List) {
	var sheets []*ast.Style
	ast.Inspect(nodes, func(n ast.Node, _ []ast.Node) bool {
		if st, ok := n.(*ast.Style); ok && isScoped(st) && st.CSS != "" {
			sheets = append(sheets, st)
		}
		return true
	})
	if len(sheets) == 0 {
		return "", nil
	}

	id := c.opts.Scopes.ID(c.scopeKey(index))
	used, dynamic := usedNames(nodes)

	var diags diag.List
	for _, st := range sheets {
		name := st.Path
		if name == "" {
			name = "<style>"
		}
		failed := false
		for _, p := range css.Validate(st.CSS) {
			summary := fmt.Sprintf("%s: %s", cssPosition(name, st.CSS, p.Offset), p.Message)
			if p.Warning {
				diags = append(diags, diag.Warning(p.Rule, st.Pos, summary, p.Help))
				continue
			}
			failed = true
			diags = append(diags, diag.New(p.Rule, st.Pos, summary, p.Help))
		}
		if failed {
			continue
		}

		scoped, err := css.Scope(st.CSS, id)
		if err != nil {
			diags = append(diags, diag.New("css/syntax", st.Pos, err.Error(), ""))
			continue
		}
		st.CSS = scoped.CSS
		if dynamic {
			continue
		}
		for _, cls := range scoped.Classes {
			if !used.classes[cls] {
				diags = append(diags, diag.Warning("css/unused-selector", st.Pos,
					fmt.Sprintf("class .%s is defined in %s but no element uses it", cls, name),
					fmt.Sprintf("remove the rule or add class=%q to an element", cls)))
			}
		}
		for _, ident := range scoped.IDs {
			if !used.ids[ident] {
				diags = append(diags, diag.Warning("css/unused-selector", st.Pos,
					fmt.Sprintf("id #%s is defined in %s but no element uses it", ident, name),
					fmt.Sprintf("remove the rule or add id=%q to an element", ident)))
			}
		}
	}
	return id, diags
}

type names struct {
	classes map[string]bool
	ids     map[string]bool
}

// usedNames collects the static class and id names of a template.
// dynamic is set when any class or id is computed at run time.
func usedNames(nodes []ast.Node) (used names, dynamic bool) {
	used = names{classes: map[string]bool{}, ids: map[string]bool{}}
	for _, el := range ast.Elements(nodes) {
		for _, a := range el.Attrs {
			if a.Name != "class" && a.Name != "id" {
				continue
			}
			if a.Kind == ast.ValueDynamic {
				dynamic = true
				continue
			}
			for _, v := range strings.Fields(a.Static) {
				if a.Name == "class" {
					used.classes[v] = true
				} else {
					used.ids[v] = true
				}
			}
		}
	}
	return used, dynamic
}

// cssPosition renders an offset in a sheet as name:line:col.
func cssPosition(name, text string, offset int) string {
	if offset > len(text) {
		offset = len(text)
	}
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return fmt.Sprintf("%s:%d:%d", name, line, col)
}

// Header starts every generated file.
func Header(path string) string {
	return fmt.Sprintf("// Code generated by kiln from %s. DO NOT EDIT.\n\n", filepath.Base(path))
}

// assemble splices the emitted regions into the source, appends the
// directive output and fixes up imports.
func (c *compiler) assemble(codes []string) ([]byte, error) {
	s := c.src
	var buf bytes.Buffer
	buf.WriteString(Header(s.Path))
	last := 0
	for i, r := range s.Regions {
		buf.Write(s.Src[last:r.Span.Start])
		buf.WriteString(codes[i])
		last = r.Span.End
	}
	buf.Write(s.Src[last:])

	local := make(map[string]bool, len(s.Decls.Schemas))
	for _, sc := range s.Decls.Schemas {
		local[sc.Name] = true
	}
	nested := func(name string) bool {
		return local[name] || (c.opts.Schemas != nil && c.opts.Schemas(name))
	}
	gen, genImports, err := directive.Generate(s.Decls, nested)
	if err != nil {
		return nil, diag.NewGenerateError(diag.ErrCodeDirective, "generating directive code", err).
			WithLocation(s.Path, 0, 0)
	}
	if gen != "" {
		buf.WriteString("\n")
		buf.WriteString(gen)
	}

	imports := genImports
	if len(s.Regions) > 0 {
		imports = append(imports, "context", "io", directive.TemplPath, directive.RuntimePath)
	}

	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, s.Path, buf.Bytes(), goparser.ParseComments)
	if err != nil {
		return nil, diag.NewGenerateError(diag.ErrCodeGoParse, "generated code does not parse", err).
			WithLocation(s.Path, 0, 0)
	}
	for _, p := range dedupe(imports) {
		if !hasImport(f, p) {
			astutil.AddImport(fset, f, p)
		}
	}

	var out bytes.Buffer
	if err := format.Node(&out, fset, f); err != nil {
		return nil, diag.NewGenerateError(diag.ErrCodeFormat, "formatting generated code", err).
			WithLocation(s.Path, 0, 0)
	}
	return out.Bytes(), nil
}

// hasImport reports whether f imports path under any name.
func hasImport(f *goast.File, path string) bool {
	for _, imp := range f.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil && p == path {
			return true
		}
	}
	return false
}

func dedupe(s []string) []string {
	if len(s) == 0 {
		return s
	}
	sort.Strings(s)
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
