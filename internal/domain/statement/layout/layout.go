package layout

import (
	"sort"
	"strings"
)

// Token is one positioned text fragment from the PDF text layer.
type Token struct {
	Text     string
	Page     int
	X        float64
	Y        float64
	W        float64
	FontSize float64
}

// Line is a reconstructed visual line in reading order.
type Line struct {
	Page int
	Y    float64
	Text string
}

// Reconstructor groups positioned tokens into visual lines. Tokens whose Y
// coordinates fall within RowTolerance of an existing row join that row; rows
// are emitted top to bottom, tokens within a row left to right. The same
// token set always produces the same lines.
type Reconstructor struct {
	// RowTolerance is the Y band, in points, within which tokens belong to
	// the same visual line.
	RowTolerance float64

	// CharJoinMultiplier scales the font size into the maximum horizontal gap
	// that still glues two fragments into one word. Wider gaps get a space.
	CharJoinMultiplier float64
}

// NewReconstructor returns a Reconstructor with defaults tuned for bank
// statement layouts.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{
		RowTolerance:       2.5,
		CharJoinMultiplier: 0.3,
	}
}

type rowBucket struct {
	page       int
	yMin, yMax float64
	tokens     []Token
}

// Lines reconstructs the visual lines of the given tokens. An empty token set
// yields an empty (non-nil error free) result.
func (r *Reconstructor) Lines(tokens []Token) []Line {
	if len(tokens) == 0 {
		return nil
	}

	var buckets []rowBucket
	for _, t := range tokens {
		found := false
		for i := range buckets {
			if buckets[i].page != t.Page {
				continue
			}
			if t.Y >= buckets[i].yMin-r.RowTolerance && t.Y <= buckets[i].yMax+r.RowTolerance {
				buckets[i].tokens = append(buckets[i].tokens, t)
				if t.Y < buckets[i].yMin {
					buckets[i].yMin = t.Y
				}
				if t.Y > buckets[i].yMax {
					buckets[i].yMax = t.Y
				}
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, rowBucket{page: t.Page, yMin: t.Y, yMax: t.Y, tokens: []Token{t}})
		}
	}

	// Pages ascend; within a page higher Y renders first (PDF origin is the
	// bottom-left corner).
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].page != buckets[j].page {
			return buckets[i].page < buckets[j].page
		}
		return buckets[i].yMax > buckets[j].yMax
	})

	lines := make([]Line, 0, len(buckets))
	for _, b := range buckets {
		text := r.joinRow(b.tokens)
		if text == "" {
			continue
		}
		lines = append(lines, Line{Page: b.page, Y: b.yMax, Text: text})
	}
	return lines
}

// joinRow orders one row's tokens left to right and merges them, inserting a
// space wherever the horizontal gap exceeds the glyph-join threshold.
func (r *Reconstructor) joinRow(tokens []Token) string {
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].X < tokens[j].X
	})

	var sb strings.Builder
	lastRight := -1.0
	for _, t := range tokens {
		if sb.Len() > 0 {
			gap := t.X - lastRight
			if gap > r.joinThreshold(t.FontSize) {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(t.Text)
		lastRight = t.X + t.W
	}
	return strings.TrimSpace(sb.String())
}

func (r *Reconstructor) joinThreshold(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1.0
	}
	return r.CharJoinMultiplier * fontSize
}
