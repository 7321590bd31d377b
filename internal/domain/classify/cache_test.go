package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classify-cache.json")

	c := OpenCache(path)
	assert.Zero(t, c.Len())

	c.Put("CRI - BROOKFIELD, VIA PORTFÓLIO GLP", Classification{
		AssetType: AssetTypeRendaFixa,
		Category:  CategoryCRI,
	})
	require.NoError(t, c.Save())

	reopened := OpenCache(path)
	require.Equal(t, 1, reopened.Len())

	cl, ok := reopened.Get("CRI - BROOKFIELD, VIA PORTFÓLIO GLP")
	require.True(t, ok)
	assert.Equal(t, AssetTypeRendaFixa, cl.AssetType)
	assert.Equal(t, CategoryCRI, cl.Category)
	assert.Equal(t, SourceCache, cl.Source)
}

func TestCacheCanonicalizesNames(t *testing.T) {
	c := OpenCache(filepath.Join(t.TempDir(), "cache.json"))
	c.Put("cri   brookfield ", Classification{AssetType: AssetTypeRendaFixa, Category: CategoryCRI})

	_, ok := c.Get("CRI BROOKFIELD")
	assert.True(t, ok)

	assert.Equal(t, "CRI BROOKFIELD", CanonicalName("  cri   Brookfield "))
}

func TestCacheIgnoresUselessEntries(t *testing.T) {
	c := OpenCache(filepath.Join(t.TempDir(), "cache.json"))

	c.Put("", Classification{AssetType: AssetTypeRendaFixa, Category: CategoryCDB})
	c.Put("SOME NAME", Classification{})
	assert.Zero(t, c.Len())

	_, ok := c.Get("")
	assert.False(t, ok)
}

func TestCacheSurvivesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := OpenCache(path)
	assert.Zero(t, c.Len())

	c.Put("LCA BANCO X", Classification{AssetType: AssetTypeRendaFixa, Category: CategoryLCA})
	require.NoError(t, c.Save())
	assert.Equal(t, 1, OpenCache(path).Len())
}

func TestCacheSaveSkipsWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.json")
	c := OpenCache(path)
	require.NoError(t, c.Save())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
