package record

import (
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

// Raw is one candidate investment record as read off the statement, before
// normalization. Every field is nullable: a nil pointer means the statement
// did not yield that field. Values keep their pt-BR formatting ("102.084,44",
// "17/04/25") until the normalizer runs.
type Raw struct {
	Section section.Section
	Page    int

	Name *string

	IssueDate       *string
	ApplicationDate *string
	MaturityDate    *string

	InitialAmount *string
	Indexer       *string
	IssueRate     *string
	AnnualRate    *string
	Quantity      *string
	UnitPrice     *string
	GrossValue    *string
	Taxes         *string
	TaxRate       *string
	NetValue      *string

	PortfolioShare   *string
	MonthReturn      *string
	SinceStartReturn *string
}

// Indexer codes as printed on the statement. IPCA rows flagged "M D" carry
// monthly-distribution coupons and are tracked as their own code.
const (
	IndexerCDI    = "CDI"
	IndexerPRE    = "PRE"
	IndexerIPCA   = "IPCA"
	IndexerIPCAMD = "IPCA_MD"
)

func strPtr(s string) *string { return &s }

// Deref unwraps a nullable field for logging and map keys.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
