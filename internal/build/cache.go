package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/registry"
)

// cacheFile is the name of the persisted cache inside build.cache_dir.
const cacheFile = "kiln-cache.json"

// DefaultCacheSize bounds the in-memory cache (bytes of generated code).
const DefaultCacheSize = 64 << 20

// Entry is the cached compile of one source file.
type Entry struct {
	Path string `json:"path"`
	// Key is the content hash of the source, its stylesheets, the Go
	// files of its package and the components it calls.
	Key       string          `json:"key"`
	Code      []byte          `json:"code"`
	Deps      []string        `json:"deps,omitempty"`
	Calls     []registry.Key  `json:"calls,omitempty"`
	Edges     []registry.Edge `json:"edges,omitempty"`
	Diags     diag.List       `json:"diags,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	size int64
	prev *Entry
	next *Entry
}

// Cache holds compiled files with LRU eviction by size.
type Cache struct {
	entries     map[string]*Entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	head        *Entry
	tail        *Entry

	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries   int
	Size      int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewCache creates a cache holding at most maxSize bytes of code.
func NewCache(maxSize int64) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
		head:    &Entry{},
		tail:    &Entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Peek returns the entry for path without touching the counters.
func (c *Cache) Peek(path string) (*Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

// Get returns the entry for path when its key matches. A stale entry is
// dropped.
func (c *Cache) Get(path, key string) (*Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[path]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if e.Key != key {
		c.drop(e)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e, true
}

// Set stores e, replacing any entry for the same path.
func (c *Cache) Set(e *Entry) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if old, ok := c.entries[e.Path]; ok {
		c.drop(old)
	}
	e.size = int64(len(e.Code))
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c.evictIfNeeded(e.size)
	c.entries[e.Path] = e
	c.currentSize += e.size
	c.addToFront(e)
	atomic.AddInt64(&c.sets, 1)
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[path]
	if ok {
		c.drop(e)
	}
	return ok
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return CacheStats{
		Entries:   len(c.entries),
		Size:      c.currentSize,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

// HitRate returns hits as a percentage of lookups.
func (c *Cache) HitRate() float64 {
	hits := atomic.LoadInt64(&c.hits)
	total := hits + atomic.LoadInt64(&c.misses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Save writes every entry to dir, creating it if needed.
func (c *Cache) Save(dir string) error {
	c.mutex.Lock()
	entries := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mutex.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	data, err := json.Marshal(entries)
	if err != nil {
		return diag.NewBuildError(diag.ErrCodeFileWrite, "encode build cache", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return diag.NewIOError(diag.ErrCodeFileWrite, "create cache directory", err).WithLocation(dir, 0, 0)
	}
	path := filepath.Join(dir, cacheFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return diag.NewIOError(diag.ErrCodeFileWrite, "write build cache", err).WithLocation(path, 0, 0)
	}
	return nil
}

// Load reads the entries saved in dir. A missing cache is not an error.
func (c *Cache) Load(dir string) error {
	path := filepath.Join(dir, cacheFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return diag.NewIOError(diag.ErrCodeFileRead, "read build cache", err).WithLocation(path, 0, 0)
	}
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return diag.NewBuildError(diag.ErrCodeFileRead, "decode build cache", err).WithLocation(path, 0, 0)
	}
	for _, e := range entries {
		if e != nil && e.Path != "" {
			c.Set(e)
		}
	}
	return nil
}

func (c *Cache) drop(e *Entry) {
	c.removeFromList(e)
	delete(c.entries, e.Path)
	c.currentSize -= e.size
}

func (c *Cache) evictIfNeeded(newSize int64) {
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		lru := c.tail.prev
		c.drop(lru)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *Cache) addToFront(e *Entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) removeFromList(e *Entry) {
	if e.prev == nil || e.next == nil {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

func (c *Cache) moveToFront(e *Entry) {
	c.removeFromList(e)
	c.addToFront(e)
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// keyInput lists what a compile of one source reads besides the source.
type keyInput struct {
	src     []byte
	deps    []string
	goFiles []string
	calls   []*registry.Component
	schemas []string
}

// cacheKey hashes the source together with everything its output
// depends on. Missing files hash as missing, so creating one changes the
// key.
func cacheKey(in keyInput, readFile func(string) ([]byte, error)) string {
	h := crc32.New(crcTable)
	h.Write(in.src)
	for _, group := range [][]string{in.deps, in.goFiles} {
		for _, p := range group {
			fmt.Fprintf(h, "\x00file %s\x00", p)
			data, err := readFile(p)
			if err != nil {
				h.Write([]byte("missing"))
				continue
			}
			h.Write(data)
		}
	}
	for _, c := range in.calls {
		fmt.Fprintf(h, "\x00call %s\x00", describe(c))
	}
	fmt.Fprintf(h, "\x00schemas %s", strings.Join(in.schemas, ","))
	return fmt.Sprintf("%08x", h.Sum32())
}

// describe renders the parts of a component that shape its call sites.
func describe(c *registry.Component) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s.%s(", c.Dir, c.Package, c.Name)
	for _, p := range c.Props {
		fmt.Fprintf(&b, "%s %s=%s,", p.Param, p.Type, p.Default)
	}
	fmt.Fprintf(&b, ")children=%s", c.ChildrenParam)
	return b.String()
}
