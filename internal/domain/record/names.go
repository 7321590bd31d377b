package record

import (
	"regexp"
	"strings"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

var (
	indexerSuffixRe = regexp.MustCompile(`\s+(CDI|PRE|IPCA)[\s_\d\-]*$`)
	numericTailRe   = regexp.MustCompile(`\s+[\d.,]+$`)
)

// Resolver recovers asset names for records whose data line carries none.
// Names print on their own lines near the data row: usually immediately
// above it, occasionally continuing on the line below. Each fragment line is
// consumed by at most one record, and a record that resolves no name keeps a
// nil name rather than being dropped.
type Resolver struct {
	parser *Parser
}

func NewResolver(parser *Parser) *Resolver {
	return &Resolver{parser: parser}
}

// parsedLine pairs a tagged line with its parse outcome.
type parsedLine struct {
	line     section.TaggedLine
	raw      *Raw // nil for non-data lines
	consumed bool
}

// Resolve parses every data line in order and attaches names from the
// surrounding fragment lines. The result preserves statement order.
func (r *Resolver) Resolve(lines []section.TaggedLine) []*Raw {
	parsed := make([]parsedLine, len(lines))
	for i, line := range lines {
		parsed[i] = parsedLine{line: line}
		if r.parser.IsDataLine(line.Text) {
			parsed[i].raw = r.parser.Parse(line)
		}
	}

	// First pass: inline names and fragment runs above each record. Claims
	// here take precedence over continuation claims below.
	for i := range parsed {
		raw := parsed[i].raw
		if raw == nil {
			continue
		}
		if raw.Name != nil {
			continue
		}
		if parts := r.claimPreceding(parsed, i); len(parts) > 0 {
			raw.Name = strPtr(strings.Join(parts, " "))
		}
	}

	// Second pass: the inverted case, a fragment printed after its record.
	for i := range parsed {
		raw := parsed[i].raw
		if raw == nil {
			continue
		}
		cont, ok := r.claimContinuation(parsed, i)
		if !ok {
			continue
		}
		if raw.Name == nil {
			raw.Name = strPtr(cont)
		} else {
			raw.Name = strPtr(*raw.Name + " " + cont)
		}
	}

	var out []*Raw
	for i := range parsed {
		if parsed[i].raw != nil {
			out = append(out, parsed[i].raw)
		}
	}
	return out
}

// claimPreceding collects the run of unconsumed fragment lines directly
// above index i, in reading order. The run never crosses another data line.
func (r *Resolver) claimPreceding(parsed []parsedLine, i int) []string {
	var rev []string
	for j := i - 1; j >= 0; j-- {
		if parsed[j].raw != nil {
			break
		}
		if parsed[j].consumed {
			break
		}
		name := cleanFragment(parsed[j].line.Text)
		if name == "" {
			break
		}
		parsed[j].consumed = true
		rev = append(rev, name)
	}

	parts := make([]string, 0, len(rev))
	for k := len(rev) - 1; k >= 0; k-- {
		parts = append(parts, rev[k])
	}
	return parts
}

// claimContinuation takes the line after index i when it is an unconsumed
// fragment: no data of its own and a non-numeric remnant once the trailing
// number tail is stripped.
func (r *Resolver) claimContinuation(parsed []parsedLine, i int) (string, bool) {
	j := i + 1
	if j >= len(parsed) {
		return "", false
	}
	if parsed[j].raw != nil || parsed[j].consumed {
		return "", false
	}

	text := strings.TrimSpace(numericTailRe.ReplaceAllString(parsed[j].line.Text, ""))
	text = strings.TrimSpace(indexerSuffixRe.ReplaceAllString(text, ""))
	if text == "" || isDigitsOnly(text) {
		return "", false
	}

	parsed[j].consumed = true
	return text, true
}

// cleanFragment strips indexer tags that bleed onto name lines, e.g.
// "BANCO ABC SA CDI_3 -" keeps only "BANCO ABC SA".
func cleanFragment(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(indexerSuffixRe.ReplaceAllString(text, ""))
	if isDigitsOnly(text) {
		return ""
	}
	return text
}

func isDigitsOnly(s string) bool {
	stripped := strings.NewReplacer(".", "", ",", "", " ", "").Replace(s)
	if stripped == "" {
		return true
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
