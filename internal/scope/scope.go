// Package scope allocates the identifiers that isolate component CSS.
//
// An identifier is "s" followed by eight hex digits of the CRC32
// (Castagnoli) of the template's file path and index, so recompiling an
// unchanged file yields the same identifier. The Allocator is the one
// piece of state shared by every compilation in a build; it salts the
// hash on the rare collision so two templates never share an identifier.
package scope

import (
	"fmt"
	"hash/crc32"
	"path/filepath"
	"sync"
)

var table = crc32.MakeTable(crc32.Castagnoli)

// Key identifies a template within a build.
type Key struct {
	// File is the source path, relative to the module root.
	File  string
	Index int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", filepath.ToSlash(k.File), k.Index)
}

// Hash returns the unsalted identifier for key.
func Hash(key Key) string {
	return format(crc32.Checksum([]byte(key.String()), table))
}

func format(sum uint32) string {
	return fmt.Sprintf("s%08x", sum)
}

// Allocator hands out identifiers that are unique within a build.
type Allocator struct {
	mu    sync.Mutex
	byKey map[Key]string
	owner map[string]Key
}

// NewAllocator returns an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		byKey: make(map[Key]string),
		owner: make(map[string]Key),
	}
}

// ID returns the identifier for key, allocating it on first use.
func (a *Allocator) ID(key Key) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.byKey[key]; ok {
		return id
	}

	id := Hash(key)
	for salt := 1; ; salt++ {
		if _, taken := a.owner[id]; !taken {
			break
		}
		id = format(crc32.Checksum([]byte(fmt.Sprintf("%s#%d", key, salt)), table))
	}
	a.byKey[key] = id
	a.owner[id] = key
	return id
}

// Release forgets every identifier allocated for file, so a rebuilt
// file can claim them again.
func (a *Allocator) Release(file string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k, id := range a.byKey {
		if k.File == file {
			delete(a.byKey, k)
			delete(a.owner, id)
		}
	}
}

// Len returns the number of allocated identifiers.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byKey)
}
