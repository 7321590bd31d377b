package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
)

// diskCache persists resolved issuers between runs so the model and
// registry round trips only ever happen once per asset name.
type diskCache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]cacheEntry
	dirty   bool
}

type cacheEntry struct {
	Empresa     string    `json:"empresa"`
	CNPJ        string    `json:"cnpj"`
	RazaoSocial string    `json:"razao_social"`
	Situacao    string    `json:"situacao"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
}

// openDiskCache loads the cache file when it exists. A missing or corrupt
// file starts an empty cache rather than failing the run.
func openDiskCache(path string) *diskCache {
	c := &diskCache{
		path:    path,
		entries: make(map[string]cacheEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = make(map[string]cacheEntry)
	}
	return c
}

func (c *diskCache) get(name string) (*Issuer, bool) {
	key := classify.CanonicalName(name)
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || entry.CNPJ == "" {
		return nil, false
	}
	return &Issuer{
		CNPJ:      entry.CNPJ,
		Company:   entry.Empresa,
		LegalName: entry.RazaoSocial,
		Status:    entry.Situacao,
		Source:    SourceCache,
	}, true
}

func (c *diskCache) put(name string, iss *Issuer) {
	key := classify.CanonicalName(name)
	if key == "" || iss == nil || iss.CNPJ == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		Empresa:     iss.Company,
		CNPJ:        iss.CNPJ,
		RazaoSocial: iss.LegalName,
		Situacao:    iss.Status,
		Timestamp:   time.Now(),
		Source:      iss.Source,
	}
	c.dirty = true
}

// save writes the cache back atomically. Unchanged caches are not rewritten.
func (c *diskCache) save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cnpj cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cnpj cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing cnpj cache: %w", err)
	}

	c.dirty = false
	return nil
}
