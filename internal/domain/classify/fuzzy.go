package classify

import (
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FuzzyMatch is a near-miss keyword hit with its similarity score.
type FuzzyMatch struct {
	Pattern  string
	Category string
	Score    int // 0-100, 100 is exact
	Distance int // Levenshtein distance of the best token
}

// FuzzyMatcher catches instrument keywords that the exact engine misses:
// accent variants and extraction jitter such as "DEBENTURE" for
// "DEBÊNTURE". Names are scored token by token against the vocabulary.
type FuzzyMatcher struct {
	patterns []fuzzyPattern
	mu       sync.RWMutex
}

type fuzzyPattern struct {
	normalized string
	category   string
	priority   int
}

func NewFuzzyMatcher(rules []KeywordRule) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(rules)
	return fm
}

func (fm *FuzzyMatcher) Build(rules []KeywordRule) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.patterns = make([]fuzzyPattern, 0, len(rules))
	for _, rule := range rules {
		cleanPattern := strings.ToUpper(strings.TrimSpace(rule.Pattern))
		if cleanPattern == "" {
			continue
		}
		fm.patterns = append(fm.patterns, fuzzyPattern{
			normalized: cleanPattern,
			category:   rule.Category,
			priority:   rule.Priority,
		})
	}
}

// Match returns the best-scoring pattern at or above the threshold, or nil.
// Threshold is a similarity score (0-100). Ties break on rule priority.
func (fm *FuzzyMatcher) Match(name string, threshold int) *FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	if len(fm.patterns) == 0 || strings.TrimSpace(name) == "" {
		return nil
	}

	normalized := strings.ToUpper(name)
	tokens := strings.Fields(normalized)

	var best *FuzzyMatch
	bestPriority := 0
	for _, p := range fm.patterns {
		score, distance := scoreAgainst(normalized, tokens, p.normalized)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score || (score == best.Score && p.priority > bestPriority) {
			best = &FuzzyMatch{
				Pattern:  p.normalized,
				Category: p.category,
				Score:    score,
				Distance: distance,
			}
			bestPriority = p.priority
		}
	}
	return best
}

func (fm *FuzzyMatcher) PatternCount() int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return len(fm.patterns)
}

// scoreAgainst scores a pattern against the whole name and against each of
// its tokens, keeping the best. Short patterns only resemble single tokens
// of a long position name, never the full string.
func scoreAgainst(whole string, tokens []string, pattern string) (int, int) {
	bestScore := fuzzyScore(whole, pattern)
	bestDistance := levenshteinDistance(whole, pattern)

	for _, token := range tokens {
		if score := fuzzyScore(token, pattern); score > bestScore {
			bestScore = score
			bestDistance = levenshteinDistance(token, pattern)
		}
	}
	return bestScore, bestDistance
}

// fuzzyScore calculates a similarity score between two strings (0-100)
// from containment, Levenshtein distance and subsequence rank.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	if maxLen == 0 {
		return 0
	}
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	fuzzyLibScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	if levenshteinScore > fuzzyLibScore {
		return levenshteinScore
	}
	return fuzzyLibScore
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

func minOf(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
