package classify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

type stubSemantic struct {
	batches [][]Item
	out     []Classification
	err     error
}

func (s *stubSemantic) ClassifyBatch(_ context.Context, items []Item) ([]Classification, error) {
	s.batches = append(s.batches, items)
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestServiceRulePath(t *testing.T) {
	s := NewService(nil, nil, testLogger())

	results := s.ClassifyAll(context.Background(), []Item{
		{Name: "CDB BANCO SOFISA", Section: section.PosFixado},
		{Name: "CRI - BROOKFIELD", Section: section.PosFixado},
		{Name: "KAPITALO K10 FIC MM", Section: section.Multi},
	})

	require.Len(t, results, 3)

	assert.Equal(t, CategoryCDB, results[0].Category)
	assert.Equal(t, AssetTypeRendaFixa, results[0].AssetType)
	assert.Equal(t, SourceRules, results[0].Source)

	assert.Equal(t, CategoryCRI, results[1].Category)
	assert.Equal(t, AssetTypeRendaFixa, results[1].AssetType)

	assert.Equal(t, CategoryFundoMultimercado, results[2].Category)
	assert.Equal(t, AssetTypeFundo, results[2].AssetType)
}

func TestServiceSectionFallback(t *testing.T) {
	s := NewService(nil, nil, testLogger())

	t.Run("fixed income section implies renda fixa", func(t *testing.T) {
		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "BANCO VOTORANTIM S A", Section: section.PreFixado},
		})
		require.Len(t, results, 1)
		assert.Empty(t, results[0].Category)
		assert.Equal(t, AssetTypeRendaFixa, results[0].AssetType)
	})

	t.Run("unknown section stays unclassified", func(t *testing.T) {
		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "BANCO VOTORANTIM S A", Section: section.Unknown},
		})
		require.Len(t, results, 1)
		assert.Empty(t, results[0].AssetType)
	})
}

func TestServiceSemanticOverride(t *testing.T) {
	t.Run("semantic result replaces the rule guess wholesale", func(t *testing.T) {
		sem := &stubSemantic{out: []Classification{
			{AssetType: AssetTypeRendaFixa, Category: CategoryDebenture},
		}}
		s := NewService(nil, sem, testLogger())

		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "CDB BANCO SOFISA", Section: section.PosFixado},
		})

		require.Len(t, results, 1)
		assert.Equal(t, CategoryDebenture, results[0].Category)
		assert.Equal(t, SourceSemantic, results[0].Source)
	})

	t.Run("missing asset type is derived from the category", func(t *testing.T) {
		sem := &stubSemantic{out: []Classification{{Category: CategoryLCA}}}
		s := NewService(nil, sem, testLogger())

		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "LCA BANCO DAYCOVAL", Section: section.PosFixado},
		})
		assert.Equal(t, AssetTypeRendaFixa, results[0].AssetType)
	})

	t.Run("failure keeps the rule results", func(t *testing.T) {
		sem := &stubSemantic{err: errors.New("api down")}
		s := NewService(nil, sem, testLogger())

		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "CDB BANCO SOFISA", Section: section.PosFixado},
		})

		require.Len(t, results, 1)
		assert.Equal(t, CategoryCDB, results[0].Category)
		assert.Equal(t, SourceRules, results[0].Source)
	})

	t.Run("wrong count keeps the rule results", func(t *testing.T) {
		sem := &stubSemantic{out: []Classification{}}
		s := NewService(nil, sem, testLogger())

		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "CDB BANCO SOFISA", Section: section.PosFixado},
		})
		assert.Equal(t, CategoryCDB, results[0].Category)
	})
}

func TestServiceCache(t *testing.T) {
	dir := t.TempDir()

	t.Run("cache hits skip the semantic batch", func(t *testing.T) {
		cache := OpenCache(filepath.Join(dir, "hits.json"))
		cache.Put("CRI - BROOKFIELD", Classification{AssetType: AssetTypeRendaFixa, Category: CategoryCRI})

		sem := &stubSemantic{out: []Classification{
			{AssetType: AssetTypeFundo, Category: CategoryFundoMultimercado},
		}}
		s := NewService(cache, sem, testLogger())

		results := s.ClassifyAll(context.Background(), []Item{
			{Name: "CRI - BROOKFIELD", Section: section.PosFixado},
			{Name: "KAPITALO K10 FIC MM", Section: section.Multi},
		})

		require.Len(t, sem.batches, 1)
		require.Len(t, sem.batches[0], 1)
		assert.Equal(t, "KAPITALO K10 FIC MM", sem.batches[0][0].Name)

		assert.Equal(t, SourceCache, results[0].Source)
		assert.Equal(t, CategoryCRI, results[0].Category)
		assert.Equal(t, SourceSemantic, results[1].Source)
	})

	t.Run("semantic results are cached for the next run", func(t *testing.T) {
		cache := OpenCache(filepath.Join(dir, "learn.json"))
		sem := &stubSemantic{out: []Classification{
			{AssetType: AssetTypeRendaFixa, Category: CategoryLIG},
		}}
		s := NewService(cache, sem, testLogger())

		s.ClassifyAll(context.Background(), []Item{
			{Name: "LIG BRADESCO 2030", Section: section.PosFixado},
		})

		cl, ok := cache.Get("LIG BRADESCO 2030")
		require.True(t, ok)
		assert.Equal(t, CategoryLIG, cl.Category)
		require.NoError(t, s.SaveCache())
	})

	t.Run("all cached means no semantic call", func(t *testing.T) {
		cache := OpenCache(filepath.Join(dir, "full.json"))
		cache.Put("CDB BANCO PINE", Classification{AssetType: AssetTypeRendaFixa, Category: CategoryCDB})

		sem := &stubSemantic{}
		s := NewService(cache, sem, testLogger())

		s.ClassifyAll(context.Background(), []Item{
			{Name: "CDB BANCO PINE", Section: section.PosFixado},
		})
		assert.Empty(t, sem.batches)
	})
}
