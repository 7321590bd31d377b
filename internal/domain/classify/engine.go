package classify

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// KeywordRule binds an instrument keyword to a category. Higher priority
// wins when several keywords hit the same name.
type KeywordRule struct {
	Pattern  string
	Category string
	Priority int
}

// DefaultRules is the instrument vocabulary of Brazilian statements.
// Specific paper types outrank the generic fund markers, so a name like
// "CRI FUNDO GLP" still classifies as CRI.
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		{Pattern: "CRI", Category: CategoryCRI, Priority: 100},
		{Pattern: "CRA", Category: CategoryCRA, Priority: 100},
		{Pattern: "LCI", Category: CategoryLCI, Priority: 100},
		{Pattern: "LCA", Category: CategoryLCA, Priority: 100},
		{Pattern: "LIG", Category: CategoryLIG, Priority: 100},
		{Pattern: "CDB", Category: CategoryCDB, Priority: 100},
		{Pattern: "DEB", Category: CategoryDebenture, Priority: 90},
		{Pattern: "DEBENTURE", Category: CategoryDebenture, Priority: 95},
		{Pattern: "DEBÊNTURE", Category: CategoryDebenture, Priority: 95},
		{Pattern: "LETRA FINANCEIRA", Category: CategoryLetraFinanceira, Priority: 95},
		{Pattern: "NTN-B", Category: CategoryTituloPublico, Priority: 100},
		{Pattern: "NTN-F", Category: CategoryTituloPublico, Priority: 100},
		{Pattern: "LTN", Category: CategoryTituloPublico, Priority: 90},
		{Pattern: "LFT", Category: CategoryTituloPublico, Priority: 90},
		{Pattern: "TESOURO", Category: CategoryTituloPublico, Priority: 95},
		{Pattern: "TÍTULO PÚBLICO", Category: CategoryTituloPublico, Priority: 95},
		{Pattern: "FIC", Category: CategoryFundoMultimercado, Priority: 50},
		{Pattern: "FIM", Category: CategoryFundoMultimercado, Priority: 50},
		{Pattern: "FUNDO", Category: CategoryFundoMultimercado, Priority: 60},
		{Pattern: "MULTIMERCADO", Category: CategoryFundoMultimercado, Priority: 60},
	}
}

// Match is one keyword hit.
type Match struct {
	Pattern  string
	Category string
	Priority int
}

// Engine matches the keyword vocabulary against position names using the
// Aho-Corasick algorithm: one pass over the text regardless of how many
// patterns are loaded.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata [][]Match
	mu       sync.RWMutex
}

func NewEngine(rules []KeywordRule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build constructs the matcher. Duplicate patterns group their metadata
// under one trie entry.
func (e *Engine) Build(rules []KeywordRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(rules) == 0 {
		e.matcher = nil
		e.patterns = nil
		e.metadata = nil
		return
	}

	patternToIndex := make(map[string]int)
	patterns := make([]string, 0, len(rules))
	metadata := make([][]Match, 0, len(rules))

	for _, rule := range rules {
		cleanPattern := strings.ToUpper(strings.TrimSpace(rule.Pattern))
		if cleanPattern == "" {
			continue
		}

		m := Match{Pattern: cleanPattern, Category: rule.Category, Priority: rule.Priority}
		if idx, exists := patternToIndex[cleanPattern]; exists {
			metadata[idx] = append(metadata[idx], m)
			continue
		}
		patternToIndex[cleanPattern] = len(patterns)
		patterns = append(patterns, cleanPattern)
		metadata = append(metadata, []Match{m})
	}

	e.patterns = patterns
	e.metadata = metadata

	if len(patterns) == 0 {
		e.matcher = nil
		return
	}

	bytePatterns := make([][]byte, len(patterns))
	for i, p := range patterns {
		bytePatterns[i] = []byte(p)
	}
	e.matcher = ahocorasick.NewMatcher(bytePatterns)
}

// Match returns the highest-priority keyword hit in the text, or nil when
// nothing in the vocabulary occurs.
func (e *Engine) Match(text string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil || len(e.patterns) == 0 {
		return nil
	}

	hits := e.matcher.Match([]byte(strings.ToUpper(text)))
	if len(hits) == 0 {
		return nil
	}

	var best *Match
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			m := &e.metadata[idx][i]
			if best == nil || m.Priority > best.Priority {
				c := *m
				best = &c
			}
		}
	}
	return best
}

// MatchBatch classifies many names with the matcher locked once.
func (e *Engine) MatchBatch(texts []string) []*Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]*Match, len(texts))
	if e.matcher == nil || len(e.patterns) == 0 {
		return results
	}

	for i, text := range texts {
		hits := e.matcher.Match([]byte(strings.ToUpper(text)))
		var best *Match
		for _, idx := range hits {
			if idx < 0 || idx >= len(e.metadata) {
				continue
			}
			for j := range e.metadata[idx] {
				m := &e.metadata[idx][j]
				if best == nil || m.Priority > best.Priority {
					c := *m
					best = &c
				}
			}
		}
		results[i] = best
	}
	return results
}

func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

func (e *Engine) IsEmpty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher == nil || len(e.patterns) == 0
}
