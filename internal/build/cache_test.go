package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/registry"
)

func entry(path, key, code string) *Entry {
	return &Entry{Path: path, Key: key, Code: []byte(code)}
}

func TestCacheLRU(t *testing.T) {
	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(30)
		for i := 1; i <= 5; i++ {
			cache.Set(entry(fmt.Sprintf("f%d", i), "k", "value"))
		}
		for i := 1; i <= 5; i++ {
			_, ok := cache.Get(fmt.Sprintf("f%d", i), "k")
			assert.True(t, ok, "f%d should be present", i)
		}

		cache.Set(entry("f6", "k", "valuevalue!"))
		_, ok := cache.Get("f1", "k")
		assert.False(t, ok)
		_, ok = cache.Get("f2", "k")
		assert.False(t, ok)
		_, ok = cache.Get("f6", "k")
		assert.True(t, ok)
		assert.Equal(t, int64(2), cache.Stats().Evictions)
	})

	t.Run("access refreshes recency", func(t *testing.T) {
		cache := NewCache(20)
		for i := 1; i <= 4; i++ {
			cache.Set(entry(fmt.Sprintf("f%d", i), "k", "value"))
		}
		cache.Get("f1", "k")
		cache.Set(entry("f5", "k", "value"))

		_, ok := cache.Get("f1", "k")
		assert.True(t, ok)
		_, ok = cache.Get("f2", "k")
		assert.False(t, ok)
	})
}

func TestCacheStaleKey(t *testing.T) {
	cache := NewCache(DefaultCacheSize)
	cache.Set(entry("a.kiln", "k1", "code"))

	_, ok := cache.Get("a.kiln", "k2")
	assert.False(t, ok)
	_, ok = cache.Peek("a.kiln")
	assert.False(t, ok, "stale entries are dropped")

	stats := cache.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Size)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheReplaceAndInvalidate(t *testing.T) {
	cache := NewCache(DefaultCacheSize)
	cache.Set(entry("a.kiln", "k1", "short"))
	cache.Set(entry("a.kiln", "k2", "longer code"))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len("longer code")), stats.Size)

	assert.True(t, cache.Invalidate("a.kiln"))
	assert.False(t, cache.Invalidate("a.kiln"))
	assert.Equal(t, int64(0), cache.Stats().Size)
}

func TestCacheHitRate(t *testing.T) {
	cache := NewCache(DefaultCacheSize)
	assert.Equal(t, 0.0, cache.HitRate())

	cache.Set(entry("a.kiln", "k", "x"))
	cache.Get("a.kiln", "k")
	cache.Get("b.kiln", "k")
	assert.InDelta(t, 50.0, cache.HitRate(), 0.001)
	assert.Equal(t, CacheStats{Entries: 1, Size: 1, Hits: 1, Misses: 1}, cache.Stats())
}

func TestCacheSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cache := NewCache(DefaultCacheSize)
	cache.Set(&Entry{
		Path:  "/m/ui/card.kiln",
		Key:   "0000beef",
		Code:  []byte("package ui\n"),
		Deps:  []string{"/m/ui/card.css"},
		Calls: []registry.Key{{Dir: "/m/ui", Name: "Button"}},
		Edges: []registry.Edge{{From: registry.Key{Dir: "/m/ui", Name: "Card"}, To: registry.Key{Dir: "/m/ui", Name: "Button"}}},
		Diags: diag.List{diag.Warning("css/unused-selector", diag.Span{Start: 1, End: 4}, "unused", "")},
	})
	require.NoError(t, cache.Save(dir))

	loaded := NewCache(DefaultCacheSize)
	require.NoError(t, loaded.Load(dir))
	e, ok := loaded.Get("/m/ui/card.kiln", "0000beef")
	require.True(t, ok)
	assert.Equal(t, "package ui\n", string(e.Code))
	assert.Equal(t, []string{"/m/ui/card.css"}, e.Deps)
	assert.Equal(t, "Button", e.Edges[0].To.Name)
	require.Len(t, e.Diags, 1)
	assert.Equal(t, diag.SeverityWarning, e.Diags[0].Severity)
}

func TestCacheLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(DefaultCacheSize)
	assert.NoError(t, cache.Load(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFile), []byte("{"), 0o644))
	err := cache.Load(dir)
	require.Error(t, err)
	ke, ok := diag.GetKilnError(err)
	require.True(t, ok)
	assert.Equal(t, diag.ErrorTypeIO, ke.Type)
}

func TestCacheConcurrent(t *testing.T) {
	cache := NewCache(1 << 10)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p := fmt.Sprintf("f%d-%d", g, i%10)
				cache.Set(entry(p, "k", "0123456789"))
				cache.Get(p, "k")
				if i%7 == 0 {
					cache.Invalidate(p)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Stats().Size, int64(1<<10))
}

func TestCacheKey(t *testing.T) {
	dir := t.TempDir()
	css := filepath.Join(dir, "card.css")
	require.NoError(t, os.WriteFile(css, []byte(".card{}"), 0o644))

	button := &registry.Component{Dir: dir, Name: "Button", Props: []registry.Prop{{Param: "text", Type: "string"}}}
	in := keyInput{src: []byte("src"), deps: []string{css}, calls: []*registry.Component{button}}

	base := cacheKey(in, os.ReadFile)
	assert.Len(t, base, 8)
	assert.Equal(t, base, cacheKey(in, os.ReadFile))

	require.NoError(t, os.WriteFile(css, []byte(".card{color:red}"), 0o644))
	changedDep := cacheKey(in, os.ReadFile)
	assert.NotEqual(t, base, changedDep)

	button.Props[0].Default = `"x"`
	button.Props[0].HasDefault = true
	assert.NotEqual(t, changedDep, cacheKey(in, os.ReadFile))

	in.schemas = []string{"Post"}
	withSchemas := cacheKey(in, os.ReadFile)
	in.schemas = nil
	assert.NotEqual(t, withSchemas, cacheKey(in, os.ReadFile))

	present := cacheKey(in, os.ReadFile)
	require.NoError(t, os.Remove(css))
	assert.NotEqual(t, present, cacheKey(in, os.ReadFile))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Record(FileResult{Written: true})
	m.Record(FileResult{Cached: true})
	m.Record(FileResult{Diags: diag.List{diag.New("x", diag.Span{}, "bad", "")}})
	m.Record(FileResult{Diags: diag.List{diag.Warning("y", diag.Span{}, "meh", "")}})

	s := m.Snapshot()
	assert.Equal(t, int64(4), s.TotalFiles)
	assert.Equal(t, int64(2), s.CompiledFiles)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.FailedFiles)
	assert.Equal(t, int64(1), s.WrittenFiles)
	assert.Equal(t, int64(1), s.Warnings)
	assert.InDelta(t, 25.0, m.CacheHitRate(), 0.001)
}
