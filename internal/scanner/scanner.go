// Package scanner discovers .kiln sources and registers their components.
//
// The scanner walks the configured directories, reads every source on a
// pool of persistent workers, parses its Go side and //kiln: directives,
// and registers the declared components so templates anywhere in the
// build can resolve calls to them. File contents are hashed (CRC32) so a
// rescan of an unchanged file is free.
package scanner

import (
	"context"
	"fmt"
	"hash/crc32"
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
)

// File is one scanned source.
type File struct {
	// Path is absolute and clean.
	Path    string
	Hash    string
	ModTime time.Time
	Src     []byte
	// Source is nil when the Go side of the file does not parse.
	Source *preprocess.Source
	Diags  diag.List
}

// Dir returns the package directory of the file.
func (f *File) Dir() string { return filepath.Dir(f.Path) }

// Options configure discovery.
type Options struct {
	// Root bounds the scan; paths outside it are rejected.
	Root string
	// Exclude holds glob patterns matched against each entry's base name
	// and its slash-separated path relative to Root.
	Exclude []string
	// Workers defaults to the number of CPUs, at most 8.
	Workers int
	Logger  logging.Logger
}

// ScanJob is one file handed to the worker pool.
type ScanJob struct {
	filePath string
	result   chan<- ScanResult
}

// ScanResult is the outcome of one ScanJob.
type ScanResult struct {
	file *File
	err  error
}

// WorkerPool runs scan jobs on persistent workers.
type WorkerPool struct {
	jobQueue    chan ScanJob
	workers     []*ScanWorker
	workerCount int
	scanner     *Scanner
	stop        chan struct{}
	stopped     bool
	mu          sync.RWMutex
}

// ScanWorker is one worker goroutine.
type ScanWorker struct {
	id       int
	jobQueue <-chan ScanJob
	scanner  *Scanner
	stop     chan struct{}
}

// Scanner discovers sources and keeps the registry in step with them.
type Scanner struct {
	registry *registry.Registry
	opts     Options
	root     string
	log      logging.Logger
	pool     *WorkerPool

	mu    sync.RWMutex
	files map[string]*File
}

// New creates a scanner that registers components in reg.
func New(reg *registry.Registry, opts Options) (*Scanner, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root %s: %w", root, err)
	}

	s := &Scanner{
		registry: reg,
		opts:     opts,
		root:     abs,
		log:      logging.OrNop(opts.Logger).WithComponent("scanner"),
		files:    make(map[string]*File),
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > 8 {
			workers = 8
		}
	}
	s.pool = NewWorkerPool(workers, s)
	return s, nil
}

// NewWorkerPool starts workerCount workers for scanner.
func NewWorkerPool(workerCount int, scanner *Scanner) *WorkerPool {
	pool := &WorkerPool{
		jobQueue:    make(chan ScanJob, workerCount*2),
		workerCount: workerCount,
		scanner:     scanner,
		stop:        make(chan struct{}),
	}
	pool.workers = make([]*ScanWorker, workerCount)
	for i := 0; i < workerCount; i++ {
		w := &ScanWorker{
			id:       i,
			jobQueue: pool.jobQueue,
			scanner:  scanner,
			stop:     make(chan struct{}),
		}
		pool.workers[i] = w
		go w.start()
	}
	return pool
}

func (w *ScanWorker) start() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			f, err := w.scanner.ScanFile(job.filePath)
			job.result <- ScanResult{file: f, err: err}
		case <-w.stop:
			return
		}
	}
}

// Stop shuts the workers down. It is safe to call twice.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stop)
	for _, w := range p.workers {
		close(w.stop)
	}
}

// submit queues a job, reporting false when the pool is full or stopped.
func (p *WorkerPool) submit(job ScanJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// Registry returns the registry the scanner fills.
func (s *Scanner) Registry() *registry.Registry { return s.registry }

// Root returns the absolute scan root.
func (s *Scanner) Root() string { return s.root }

// Close stops the worker pool.
func (s *Scanner) Close() error {
	s.pool.Stop()
	return nil
}

// Discover returns every source under dirs, sorted.
func (s *Scanner) Discover(ctx context.Context, dirs ...string) ([]string, error) {
	if len(dirs) == 0 {
		dirs = []string{s.root}
	}
	var files []string
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.root, dir)
		}
		if _, err := s.validatePath(dir); err != nil {
			return nil, fmt.Errorf("invalid directory path: %w", err)
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && s.skipDir(path, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, preprocess.Extension) || s.excluded(path, d.Name()) {
				return nil
			}
			clean, err := s.validatePath(path)
			if err != nil {
				// Symlinks out of the root are skipped, not fatal.
				return nil
			}
			files = append(files, clean)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return dedupe(files), nil
}

// skipDir follows the go tool: directories starting with "." or "_",
// testdata and vendor are not part of any package.
func (s *Scanner) skipDir(path, name string) bool {
	switch {
	case strings.HasPrefix(name, "."), strings.HasPrefix(name, "_"):
		return true
	case name == "testdata", name == "vendor", name == "node_modules":
		return true
	}
	return s.excluded(path, name)
}

func (s *Scanner) excluded(path, name string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.opts.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(rel+"/", pattern) {
			return true
		}
	}
	return false
}

// ScanDirectory discovers and scans every source under dirs.
func (s *Scanner) ScanDirectory(ctx context.Context, dirs ...string) ([]*File, error) {
	paths, err := s.Discover(ctx, dirs...)
	if err != nil {
		return nil, err
	}
	return s.ScanFiles(ctx, paths)
}

// ScanFiles scans paths on the worker pool. Files are returned in path
// order; the error reports the first file that could not be read.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string) ([]*File, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	perf := logging.StartOperation(s.log, "scan")

	results := make(chan ScanResult, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.pool.submit(ScanJob{filePath: p, result: results}) {
			f, err := s.ScanFile(p)
			results <- ScanResult{file: f, err: err}
		}
	}

	var (
		files []*File
		errs  []error
	)
	for range paths {
		select {
		case r := <-results:
			if r.err != nil {
				errs = append(errs, r.err)
				continue
			}
			files = append(files, r.file)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	perf.End(ctx, "files", len(files), "components", s.registry.Count())

	if len(errs) > 0 {
		return files, fmt.Errorf("scan completed with %d errors: %w", len(errs), errs[0])
	}
	return files, nil
}

// ScanFile reads and parses one source and updates the registry. An
// unchanged file returns its previous result.
func (s *Scanner) ScanFile(path string) (*File, error) {
	clean, err := s.validatePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, diag.NewIOError(diag.ErrCodeFileRead, "stat source", err).WithLocation(clean, 0, 0)
	}
	content, err := os.ReadFile(clean)
	if err != nil {
		return nil, diag.NewIOError(diag.ErrCodeFileRead, "read source", err).WithLocation(clean, 0, 0)
	}
	hash := Hash(content)

	s.mu.RLock()
	prev, ok := s.files[clean]
	s.mu.RUnlock()
	if ok && prev.Hash == hash {
		return prev, nil
	}

	src, diags := preprocess.Parse(clean, content)
	f := &File{Path: clean, Hash: hash, ModTime: info.ModTime(), Src: content, Source: src, Diags: diags}

	s.mu.Lock()
	s.files[clean] = f
	s.mu.Unlock()

	s.registry.RemoveFile(clean)
	if src != nil {
		for _, c := range src.Decls.Components {
			c.LastMod = f.ModTime
			c.Hash = hash
			s.registry.Register(c)
		}
	}
	s.log.Debug(context.Background(), "scanned", "file", clean, "hash", hash, "diagnostics", len(diags))
	return f, nil
}

// Remove forgets a deleted source and its components.
func (s *Scanner) Remove(path string) []*registry.Component {
	clean := filepath.Clean(path)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	s.mu.Lock()
	delete(s.files, clean)
	s.mu.Unlock()
	return s.registry.RemoveFile(clean)
}

// File returns the last scan of path.
func (s *Scanner) File(path string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[path]
	return f, ok
}

// Files returns every scanned file sorted by path.
func (s *Scanner) Files() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// InDir returns the scanned files of one package directory.
func (s *Scanner) InDir(dir string) []*File {
	var out []*File
	for _, f := range s.Files() {
		if f.Dir() == dir {
			out = append(out, f)
		}
	}
	return out
}

// Schemas reports which //kiln:schema types the package in dir declares.
func (s *Scanner) Schemas(dir string) func(name string) bool {
	names := make(map[string]bool)
	for _, f := range s.InDir(dir) {
		if f.Source == nil {
			continue
		}
		for _, sc := range f.Source.Decls.Schemas {
			names[sc.Name] = true
		}
	}
	return func(name string) bool { return names[name] }
}

// References returns the identifiers mentioned by the sources of dir.
func (s *Scanner) References(dir string) map[string]bool {
	refs := make(map[string]bool)
	for _, f := range s.InDir(dir) {
		if f.Source == nil {
			continue
		}
		for name := range f.Source.References() {
			refs[name] = true
		}
	}
	return refs
}

// Hash returns the content hash used for change detection.
func Hash(content []byte) string {
	return fmt.Sprintf("%08x", crc32.Checksum(content, crc32.MakeTable(crc32.Castagnoli)))
}

// validatePath cleans path and rejects anything outside the root.
func (s *Scanner) validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the scan root %s", path, s.root)
	}
	return absPath, nil
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
