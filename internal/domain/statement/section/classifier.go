package section

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/layout"
)

// TaggedLine is a data line annotated with the section it belongs to.
type TaggedLine struct {
	layout.Line
	Section Section
}

// Result carries the classified lines plus everything the fold discarded.
type Result struct {
	Lines    []TaggedLine
	Preamble []string // lines seen before the first header, dropped with a warning
	Skipped  int      // banner/column-header/total/footer lines
}

// Classifier assigns every statement line to its section. It is a fold over
// the line sequence: the state is the section opened by the nearest preceding
// header, header lines change the state and are consumed, noise lines are
// skipped, and everything else is emitted tagged with the current state.
type Classifier struct {
	// MaxHeaderDistance is the Levenshtein tolerance for recognizing a
	// slightly mangled header line. Must stay below the distance between the
	// closest pair of real headers (PÓS-FIXADO vs PRÉ-FIXADO differ by 2).
	MaxHeaderDistance int
}

// NewClassifier returns a Classifier with the statement's header vocabulary.
func NewClassifier() *Classifier {
	return &Classifier{MaxHeaderDistance: 1}
}

// Classify folds lines through the section state machine.
func (c *Classifier) Classify(lines []layout.Line) Result {
	var res Result
	state := Unknown
	for _, line := range lines {
		state = c.step(state, line, &res)
	}
	return res
}

// step advances the fold by one line and returns the next state.
func (c *Classifier) step(state Section, line layout.Line, res *Result) Section {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return state
	}

	upper := strings.ToUpper(text)

	// The "RENDA FIXA" group banner mentions no section and must never flip
	// the state, even when a header word rides on the same line.
	if strings.Contains(upper, "RENDA FIXA") {
		res.Skipped++
		return state
	}

	// A header line carries the section name and nothing else.
	for _, s := range All() {
		if upper == string(s) {
			return s
		}
	}

	if isNoise(upper) {
		res.Skipped++
		return state
	}

	if next, ok := c.fuzzyHeader(upper); ok {
		return next
	}

	if state == Unknown {
		res.Preamble = append(res.Preamble, text)
		return state
	}

	res.Lines = append(res.Lines, TaggedLine{Line: line, Section: state})
	return state
}

// fuzzyHeader recognizes a slightly mangled whole-line header. Long data
// lines never qualify, and a line equidistant from two headers is ambiguous
// and stays unmatched.
func (c *Classifier) fuzzyHeader(upper string) (Section, bool) {
	best := Unknown
	bestDist := c.MaxHeaderDistance + 1
	ambiguous := false
	for _, s := range All() {
		d := fuzzy.LevenshteinDistance(upper, string(s))
		switch {
		case d < bestDist:
			best = s
			bestDist = d
			ambiguous = false
		case d == bestDist:
			ambiguous = true
		}
	}
	if best != Unknown && bestDist <= c.MaxHeaderDistance && !ambiguous {
		return best, true
	}
	return Unknown, false
}

func isNoise(upper string) bool {
	switch {
	case strings.Contains(upper, "DATA DE"):
		return true
	case strings.HasPrefix(upper, "TOTAL"):
		return true
	case strings.Contains(upper, "ALTERNATIVOS"):
		return true
	case strings.Contains(upper, "PÁGINA"):
		return true
	}
	return false
}
