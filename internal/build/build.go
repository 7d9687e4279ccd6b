// Package build compiles every .kiln source of a module.
//
// A build runs in two phases. The scan registers the components declared
// by every source, so a template can call a component from any file.
// The compile phase then runs each source through the preprocessor on a
// pool of workers that share one scope allocator. Compiles are cached by
// content hash, and the stylesheets each file reads are recorded in the
// dependency graph so a change to one re-compiles its consumers.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	goast "go/ast"
	goparser "go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/preprocess"
	"github.com/conneroisu/kiln/internal/registry"
	"github.com/conneroisu/kiln/internal/scanner"
	"github.com/conneroisu/kiln/internal/scope"
)

// Options configure a Builder.
type Options struct {
	// Root is the module root. Scan paths, the cache directory and
	// root-relative stylesheets resolve against it.
	Root      string
	ScanPaths []string
	Exclude   []string
	// Workers defaults to the number of CPUs.
	Workers      int
	OutputSuffix string
	// WarningsAsErrors fails files that have warnings.
	WarningsAsErrors bool
	// CacheDir persists the build cache between runs when set.
	CacheDir string
	// NoWrite compiles without writing generated files.
	NoWrite bool
	Logger  logging.Logger
}

// FileResult is the outcome of compiling one source.
type FileResult struct {
	Path   string
	Output string
	Code   []byte
	Diags  diag.List
	// Cached is set when the compile was skipped because nothing the
	// file depends on changed.
	Cached  bool
	Written bool
	// Err is a failure outside the templates, such as an unwritable
	// output file.
	Err      error
	Duration time.Duration
}

// Failed reports whether the file produced no output.
func (r *FileResult) Failed() bool { return r.Err != nil || r.Diags.HasErrors() }

// Report is the outcome of a build.
type Report struct {
	Files      []FileResult
	Diags      diag.List
	Sources    *diag.Sources
	Components int
	Duration   time.Duration
}

// Err returns every error of the build joined, or nil.
func (r *Report) Err() error {
	var errs []error
	if list := r.Diags.Errors(); len(list) > 0 {
		errs = append(errs, list)
	}
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errors.Join(errs...)
}

// Render writes every diagnostic with its source excerpt.
func (r *Report) Render(w io.Writer) {
	r.Sources.RenderAll(w, r.Diags)
}

// Counts returns how many files were compiled, served from the cache and
// failed.
func (r *Report) Counts() (compiled, cached, failed int) {
	for _, f := range r.Files {
		switch {
		case f.Failed():
			failed++
		case f.Cached:
			cached++
		default:
			compiled++
		}
	}
	return compiled, cached, failed
}

// Builder compiles a module's sources and keeps state between builds.
type Builder struct {
	opts     Options
	root     string
	log      logging.Logger
	registry *registry.Registry
	scanner  *scanner.Scanner
	graph    *registry.Graph
	scopes   *scope.Allocator
	cache    *Cache
	metrics  *Metrics

	// failed holds the sources whose last compile failed.
	failed map[string]bool

	mu sync.Mutex
}

// New creates a builder for the module at opts.Root.
func New(opts Options) (*Builder, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, diag.NewConfigError(diag.ErrCodeInvalidConfig, "resolve module root", err).WithLocation(root, 0, 0)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.OutputSuffix == "" {
		opts.OutputSuffix = preprocess.DefaultSuffix
	}
	log := logging.OrNop(opts.Logger).WithComponent("build")

	reg := registry.New()
	sc, err := scanner.New(reg, scanner.Options{
		Root:    abs,
		Exclude: opts.Exclude,
		Workers: opts.Workers,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	b := &Builder{
		opts:     opts,
		root:     abs,
		log:      log,
		registry: reg,
		scanner:  sc,
		graph:    registry.NewGraph(),
		scopes:   scope.NewAllocator(),
		cache:    NewCache(DefaultCacheSize),
		metrics:  NewMetrics(),
		failed:   make(map[string]bool),
	}
	if dir := b.cacheDir(); dir != "" {
		if err := b.cache.Load(dir); err != nil {
			log.Warn(context.Background(), err, "ignoring build cache")
		}
	}
	return b, nil
}

// Close releases the scanner's workers.
func (b *Builder) Close() error { return b.scanner.Close() }

// Root returns the absolute module root.
func (b *Builder) Root() string { return b.root }

// Registry returns the components found by the last scan.
func (b *Builder) Registry() *registry.Registry { return b.registry }

// Graph returns the build dependency graph.
func (b *Builder) Graph() *registry.Graph { return b.graph }

// Cache returns the build cache.
func (b *Builder) Cache() *Cache { return b.cache }

// Metrics returns the counters accumulated across builds.
func (b *Builder) Metrics() *Metrics { return b.metrics }

func (b *Builder) cacheDir() string {
	dir := b.opts.CacheDir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(b.root, dir)
}

// Scan discovers every source under the scan paths and registers its
// components. Sources that disappeared since the last scan are dropped.
func (b *Builder) Scan(ctx context.Context) ([]*scanner.File, error) {
	files, err := b.scanner.ScanDirectory(ctx, b.opts.ScanPaths...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
	}
	for _, f := range b.scanner.Files() {
		if !seen[f.Path] {
			b.remove(f.Path)
		}
	}
	return files, nil
}

// Build scans the module and compiles every source.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	files, err := b.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return b.compile(ctx, files)
}

// Rebuild applies a set of changed paths and recompiles the sources they
// affect, along with any source that failed last time. Changed sources
// are rescanned or, when deleted, forgotten along with their output; a
// changed stylesheet or Go file invalidates the files that read it.
func (b *Builder) Rebuild(ctx context.Context, changed []string) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Callers of a removed or renamed component are only known before the
	// rescan.
	affected := b.affected(changed)
	for path := range b.failed {
		affected[path] = true
	}

	for _, p := range changed {
		path := b.abs(p)
		if !strings.HasSuffix(path, preprocess.Extension) {
			for _, dep := range b.graph.Dependents(path) {
				b.cache.Invalidate(dep)
			}
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			b.remove(path)
			continue
		}
		if _, err := b.scanner.ScanFile(path); err != nil {
			return nil, err
		}
	}
	for path := range b.affected(changed) {
		affected[path] = true
	}

	var files []*scanner.File
	for _, f := range b.scanner.Files() {
		if affected[f.Path] {
			files = append(files, f)
		}
	}
	b.log.Debug(ctx, "rebuilding", "changed", len(changed), "files", len(files))
	return b.compile(ctx, files)
}

// Affected returns the sources a change to paths re-compiles, sorted.
func (b *Builder) Affected(paths []string) []string {
	b.mu.Lock()
	set := b.affected(paths)
	b.mu.Unlock()
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// affected collects, for each path: a changed source with every source of
// its package and the files calling its components from other packages,
// the consumers of a changed stylesheet, and every source of a package
// whose Go code changed.
func (b *Builder) affected(paths []string) map[string]bool {
	set := make(map[string]bool)
	for _, p := range paths {
		path := b.abs(p)
		dir := filepath.Dir(path)
		switch {
		case strings.HasSuffix(path, preprocess.Extension):
			set[path] = true
			for _, f := range b.scanner.InDir(dir) {
				set[f.Path] = true
			}
			for _, file := range b.callerFiles(path) {
				set[file] = true
			}
		case strings.HasSuffix(path, ".go"):
			for _, f := range b.scanner.InDir(dir) {
				set[f.Path] = true
			}
		default:
			for _, dep := range b.graph.Dependents(path) {
				set[dep] = true
			}
		}
	}
	return set
}

// callerFiles returns the files whose templates call a component declared
// in path.
func (b *Builder) callerFiles(path string) []string {
	var out []string
	for _, c := range b.registry.InDir(filepath.Dir(path)) {
		if c.FilePath != path {
			continue
		}
		for _, caller := range b.graph.Callers(registry.Key{Dir: c.Dir, Name: c.Name}) {
			if file, ok := b.graph.FileOf(caller); ok {
				out = append(out, file)
			}
		}
	}
	return out
}

func (b *Builder) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(b.root, p)
}

func (b *Builder) remove(path string) {
	delete(b.failed, path)
	b.scanner.Remove(path)
	b.graph.RemoveFile(path)
	b.cache.Invalidate(path)
	if rel, err := filepath.Rel(b.root, path); err == nil {
		b.scopes.Release(rel)
	}
	if b.opts.NoWrite {
		return
	}
	out := preprocess.OutputPath(path, b.opts.OutputSuffix)
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		b.log.Warn(context.Background(), err, "removing stale output", "file", out)
	}
}

func (b *Builder) compile(ctx context.Context, files []*scanner.File) (*Report, error) {
	start := time.Now()
	perf := logging.StartOperation(b.log, "build")

	report := &Report{Sources: diag.NewSources(), Files: make([]FileResult, len(files))}
	for _, f := range files {
		report.Sources.Add(f.Path, f.Src)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < min(b.opts.Workers, len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report.Files[idx] = b.compileFile(ctx, files[idx])
			}
		}()
	}
send:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		perf.EndWithError(ctx, err, "files", len(files))
		return nil, err
	}

	b.deadComponents(report)
	b.recursiveCalls(report)

	collector := diag.NewCollector()
	for i := range report.Files {
		r := &report.Files[i]
		if b.opts.WarningsAsErrors {
			promote(r.Diags)
		}
		b.write(r)
		b.metrics.Record(*r)
		if r.Failed() {
			b.failed[r.Path] = true
		} else {
			delete(b.failed, r.Path)
		}
		collector.Add(r.Diags...)
	}
	report.Diags = collector.Diagnostics()
	report.Components = b.registry.Count()
	report.Duration = time.Since(start)

	if dir := b.cacheDir(); dir != "" {
		if err := b.cache.Save(dir); err != nil {
			b.log.Warn(ctx, err, "saving build cache")
		}
	}

	compiled, cached, failed := report.Counts()
	perf.End(ctx, "files", len(files), "compiled", compiled, "cached", cached, "failed", failed)
	return report, nil
}

func (b *Builder) compileFile(ctx context.Context, f *scanner.File) FileResult {
	start := time.Now()
	r := FileResult{
		Path:   f.Path,
		Output: preprocess.OutputPath(f.Path, b.opts.OutputSuffix),
		Diags:  append(diag.List(nil), f.Diags...),
	}
	defer func() { r.Duration = time.Since(start) }()

	if f.Source == nil {
		return r
	}

	dir := f.Dir()
	schemas := b.schemaNames(dir)
	goFiles := b.goFiles(dir)

	key := ""
	if e, ok := b.cache.Peek(f.Path); ok {
		key = cacheKey(keyInput{src: f.Src, deps: e.Deps, goFiles: goFiles, calls: b.components(e.Calls), schemas: schemas}, os.ReadFile)
	}
	if hit, ok := b.cache.Get(f.Path, key); ok {
		b.graph.SetFile(f.Path, hit.Deps, hit.Edges)
		r.Code = hit.Code
		r.Diags = append(r.Diags, hit.Diags...)
		r.Cached = true
		b.log.Debug(ctx, "cache hit", "file", f.Path)
		return r
	}

	res, err := preprocess.Compile(ctx, f.Source, preprocess.Options{
		Root:       b.root,
		Components: b.registry,
		Scopes:     b.scopes,
		Schemas:    b.scanner.Schemas(dir),
		Logger:     b.opts.Logger,
	})
	if err != nil {
		r.Err = err
		return r
	}
	b.graph.SetFile(f.Path, res.Deps, res.Edges)
	r.Diags = append(r.Diags, res.Diags...)
	if !res.OK() || r.Diags.HasErrors() {
		return r
	}

	r.Code = res.Code
	b.cache.Set(&Entry{
		Path:  f.Path,
		Key:   cacheKey(keyInput{src: f.Src, deps: res.Deps, goFiles: goFiles, calls: b.components(res.Calls), schemas: schemas}, os.ReadFile),
		Code:  res.Code,
		Deps:  res.Deps,
		Calls: res.Calls,
		Edges: res.Edges,
		Diags: res.Diags,
	})
	return r
}

func (b *Builder) write(r *FileResult) {
	if b.opts.NoWrite || r.Code == nil || r.Failed() {
		return
	}
	if existing, err := os.ReadFile(r.Output); err == nil && bytes.Equal(existing, r.Code) {
		return
	}
	if err := os.WriteFile(r.Output, r.Code, 0o644); err != nil {
		r.Err = diag.NewIOError(diag.ErrCodeFileWrite, "write generated file", err).WithLocation(r.Output, 0, 0)
		return
	}
	r.Written = true
}

// components looks up the descriptors of calls. A call whose target is
// gone is described by its key alone.
func (b *Builder) components(keys []registry.Key) []*registry.Component {
	out := make([]*registry.Component, 0, len(keys))
	for _, k := range keys {
		if c, ok := b.registry.Get(k.Dir, k.Name); ok {
			out = append(out, c)
			continue
		}
		out = append(out, &registry.Component{Dir: k.Dir, Name: k.Name})
	}
	return out
}

func (b *Builder) schemaNames(dir string) []string {
	var names []string
	for _, f := range b.scanner.InDir(dir) {
		if f.Source == nil {
			continue
		}
		for _, s := range f.Source.Decls.Schemas {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

// goFiles lists the hand-written Go files of a package. Bound form types
// and component defaults live there.
func (b *Builder) goFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") ||
			strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, b.opts.OutputSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out
}

// deadComponents warns about unexported components nothing in their
// package mentions.
func (b *Builder) deadComponents(report *Report) {
	byPath := make(map[string]*FileResult, len(report.Files))
	dirs := make(map[string]bool)
	for i := range report.Files {
		r := &report.Files[i]
		byPath[r.Path] = r
		dirs[filepath.Dir(r.Path)] = true
	}

	for dir := range dirs {
		refs := b.scanner.References(dir)
		for name := range b.goReferences(dir) {
			refs[name] = true
		}
		for _, c := range b.registry.InDir(dir) {
			if c.Exported() || refs[c.Name] {
				continue
			}
			r, ok := byPath[c.FilePath]
			if !ok {
				continue
			}
			d := diag.Warning("component/dead", c.Span,
				fmt.Sprintf("component %s is never used", c.Name),
				"call it from a template or remove it")
			d.File = c.FilePath
			r.Diags = append(r.Diags, d)
		}
	}
}

// recursiveCalls notes every component that reaches itself through
// template calls. Recursion is valid when a condition ends it, so the
// note is informational.
func (b *Builder) recursiveCalls(report *Report) {
	byPath := make(map[string]*FileResult, len(report.Files))
	for i := range report.Files {
		byPath[report.Files[i].Path] = &report.Files[i]
	}
	for _, cycle := range b.graph.Cycles() {
		head := cycle[0]
		c, ok := b.registry.Get(head.Dir, head.Name)
		if !ok {
			continue
		}
		r, ok := byPath[c.FilePath]
		if !ok {
			continue
		}
		names := make([]string, len(cycle))
		for i, k := range cycle {
			names[i] = k.Name
		}
		d := diag.Info("component/recursive", c.Span,
			fmt.Sprintf("component %s calls itself: %s", c.Name, strings.Join(names, " -> ")),
			"make sure a condition ends the recursion")
		d.File = c.FilePath
		r.Diags = append(r.Diags, d)
	}
}

// goReferences returns the identifiers used by the hand-written Go files
// of dir.
func (b *Builder) goReferences(dir string) map[string]bool {
	refs := make(map[string]bool)
	fset := token.NewFileSet()
	for _, p := range b.goFiles(dir) {
		f, err := goparser.ParseFile(fset, p, nil, goparser.SkipObjectResolution)
		if err != nil {
			continue
		}
		goast.Inspect(f, func(n goast.Node) bool {
			if id, ok := n.(*goast.Ident); ok {
				refs[id.Name] = true
			}
			return true
		})
	}
	return refs
}

func promote(l diag.List) {
	for i := range l {
		if l[i].Severity == diag.SeverityWarning {
			l[i].Severity = diag.SeverityError
		}
	}
}
