package classify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrServiceUnavailable marks a semantic classification failure. Callers
// never see it as a hard error: the rule-based result stands in.
var ErrServiceUnavailable = errors.New("classification service unavailable")

// fuzzyThreshold is the minimum similarity score for the fuzzy fallback.
// High enough that three-letter instrument codes (CDB vs CDI) never blur
// into each other.
const fuzzyThreshold = 85

// SemanticClassifier classifies a batch of positions by meaning rather than
// keywords. The live implementation calls an LLM; tests stub it.
type SemanticClassifier interface {
	ClassifyBatch(ctx context.Context, items []Item) ([]Classification, error)
}

// Service is the classification front door: cache first, keyword rules
// always, semantic replacement when configured. It fails open on every path.
type Service struct {
	engine   *Engine
	fuzzy    *FuzzyMatcher
	cache    *Cache
	semantic SemanticClassifier
	logger   *slog.Logger
}

// NewService builds a Service over the default keyword vocabulary. Cache
// and semantic may be nil; the rule path alone always works.
func NewService(cache *Cache, semantic SemanticClassifier, logger *slog.Logger) *Service {
	rules := DefaultRules()
	return &Service{
		engine:   NewEngine(rules),
		fuzzy:    NewFuzzyMatcher(rules),
		cache:    cache,
		semantic: semantic,
		logger:   logger,
	}
}

// ClassifyAll classifies every item, in order, one result per item. It
// never returns an error: positions with nothing to match keep an empty
// category and the section-derived asset type.
func (s *Service) ClassifyAll(ctx context.Context, items []Item) []Classification {
	results := make([]Classification, len(items))
	cached := make([]bool, len(items))

	for i, item := range items {
		if s.cache != nil && item.Name != "" {
			if cl, ok := s.cache.Get(item.Name); ok {
				results[i] = s.finalize(cl, item)
				cached[i] = true
				continue
			}
		}
		results[i] = s.ruleClassify(item)
	}

	if s.semantic == nil {
		return results
	}

	// Cache misses go to the semantic classifier in one batch. A complete
	// answer replaces the rule guesses wholesale; any failure leaves them
	// standing.
	var pending []int
	var batch []Item
	for i, item := range items {
		if !cached[i] {
			pending = append(pending, i)
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		return results
	}

	semantic, err := s.semantic.ClassifyBatch(ctx, batch)
	if err != nil {
		s.logger.Warn("semantic classification failed, keeping rule results",
			slog.Int("positions", len(batch)),
			slog.Any("error", errors.Join(ErrServiceUnavailable, err)))
		return results
	}
	if len(semantic) != len(batch) {
		s.logger.Warn("semantic classification returned wrong count, keeping rule results",
			slog.Int("want", len(batch)),
			slog.Int("got", len(semantic)))
		return results
	}

	for n, i := range pending {
		cl := s.finalize(semantic[n], items[i])
		cl.Source = SourceSemantic
		results[i] = cl
		if s.cache != nil && items[i].Name != "" {
			s.cache.Put(items[i].Name, cl)
		}
	}
	return results
}

// SaveCache persists newly learned classifications for later runs.
func (s *Service) SaveCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Save()
}

// ruleClassify runs the keyword engine with the fuzzy fallback.
func (s *Service) ruleClassify(item Item) Classification {
	text := item.Name + " " + string(item.Section)

	if m := s.engine.Match(text); m != nil {
		return s.finalize(Classification{Category: m.Category, Source: SourceRules}, item)
	}
	if fm := s.fuzzy.Match(item.Name, fuzzyThreshold); fm != nil {
		return s.finalize(Classification{Category: fm.Category, Source: SourceFuzzy}, item)
	}
	return s.finalize(Classification{Source: SourceRules}, item)
}

// finalize fills a missing asset type from the category, then from the
// section. Present values are never overwritten.
func (s *Service) finalize(cl Classification, item Item) Classification {
	if cl.AssetType == "" {
		cl.AssetType = DeriveAssetType(cl.Category)
	}
	if cl.AssetType == "" {
		cl.AssetType = assetTypeFromSection(item.Section)
	}
	return cl
}
