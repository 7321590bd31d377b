package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cache is a disk-backed map of canonicalized position names to their
// classification. It spares the semantic path from re-classifying names it
// has already seen in earlier runs.
type Cache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]Classification
	dirty   bool
}

// OpenCache loads the cache file when it exists. A missing or corrupt file
// starts an empty cache rather than failing the run.
func OpenCache(path string) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]Classification),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = make(map[string]Classification)
	}
	return c
}

// CanonicalName is the cache key form: uppercased with collapsed spaces.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

func (c *Cache) Get(name string) (Classification, bool) {
	key := CanonicalName(name)
	if key == "" {
		return Classification{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.entries[key]
	if ok {
		cl.Source = SourceCache
	}
	return cl, ok
}

func (c *Cache) Put(name string, cl Classification) {
	key := CanonicalName(name)
	if key == "" || cl.IsZero() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cl
	c.dirty = true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save writes the cache back atomically. Unchanged caches are not rewritten.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding classification cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing classification cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing classification cache: %w", err)
	}

	c.dirty = false
	return nil
}
