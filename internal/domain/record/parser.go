package record

import (
	"regexp"
	"strings"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

var (
	dateRe      = regexp.MustCompile(`\d{2}/\d{2}/\d{2,4}`)
	shortDateRe = regexp.MustCompile(`\d{2}/\d{2}/\d{2}`)
	valueRe     = regexp.MustCompile(`[\d.]+,\d{2}`)
	inlineName  = regexp.MustCompile(`^([A-Z][^0-9]+?)\s*\d{2}/\d{2}/`)

	cdiRateRe  = regexp.MustCompile(`CDI\s*-\s*([\d,]+)`)
	preRateRe  = regexp.MustCompile(`\bPRE\s+([\d,]+)`)
	ipcaRateRe = regexp.MustCompile(`IPCA(\s+M\s+D)?\s+([\d,]+)`)
)

// Parser turns tagged statement lines into Raw records by positional field
// extraction. It implements the rule-based branch of candidate extraction;
// the semantic extractor is the drop-in alternative for layouts this parser
// cannot follow.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// IsDataLine reports whether the line carries record data: either a printed
// date, or a monetary value on a fund row (funds omit issue and maturity
// dates).
func (p *Parser) IsDataLine(text string) bool {
	if shortDateRe.MatchString(text) {
		return true
	}
	return valueRe.MatchString(text) && strings.Contains(text, "FIC MM")
}

// Parse extracts one Raw record from a data line. It returns nil when the
// line yields no numeric fields at all; anything parseable is kept, however
// sparse, and completeness is judged later by the normalizer.
func (p *Parser) Parse(line section.TaggedLine) *Raw {
	text := strings.TrimSpace(line.Text)
	dates := dateRe.FindAllString(text, -1)
	values := valueRe.FindAllString(text, -1)
	if len(dates) == 0 && len(values) == 0 {
		return nil
	}

	raw := &Raw{Section: line.Section, Page: line.Page}

	if m := inlineName.FindStringSubmatch(text); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			raw.Name = strPtr(name)
		}
	}

	p.parseIndexer(text, raw)

	// Titles print issue, application and maturity dates. Fund rows print a
	// single date, the application.
	if len(dates) >= 3 {
		raw.IssueDate = strPtr(dates[0])
		raw.ApplicationDate = strPtr(dates[1])
		raw.MaturityDate = strPtr(dates[2])
	} else if len(dates) > 0 {
		raw.ApplicationDate = strPtr(dates[0])
	}

	p.assignValues(values, raw)
	return raw
}

// assignValues maps the value tokens onto field roles in print order. The
// indexer column carries its annual rate as a value token, so rows with an
// indexer have every later role shifted by one slot.
func (p *Parser) assignValues(values []string, raw *Raw) {
	at := func(i int) *string {
		if i >= 0 && i < len(values) {
			return strPtr(values[i])
		}
		return nil
	}

	shift := 0
	if raw.Indexer != nil {
		raw.AnnualRate = at(1)
		shift = 1
	}

	raw.InitialAmount = at(0)
	raw.Quantity = at(1 + shift)
	raw.UnitPrice = at(2 + shift)
	raw.GrossValue = at(3 + shift)
	raw.Taxes = at(4 + shift)
	raw.TaxRate = at(5 + shift)
	raw.NetValue = at(6 + shift)
	raw.PortfolioShare = at(7 + shift)
	raw.MonthReturn = at(8 + shift)
	raw.SinceStartReturn = at(9 + shift)
}

func (p *Parser) parseIndexer(text string, raw *Raw) {
	switch {
	case strings.Contains(text, "CDI"):
		raw.Indexer = strPtr(IndexerCDI)
		if m := cdiRateRe.FindStringSubmatch(text); m != nil {
			raw.IssueRate = strPtr(m[1])
		}
	case strings.Contains(text, "PRE"):
		raw.Indexer = strPtr(IndexerPRE)
		if m := preRateRe.FindStringSubmatch(text); m != nil {
			raw.IssueRate = strPtr(m[1])
		}
	case strings.Contains(text, "IPCA"):
		code := IndexerIPCA
		if m := ipcaRateRe.FindStringSubmatch(text); m != nil {
			if m[1] != "" {
				code = IndexerIPCAMD
			}
			raw.IssueRate = strPtr(m[2])
		} else if strings.Contains(text, "M D") {
			code = IndexerIPCAMD
		}
		raw.Indexer = strPtr(code)
	}
}
