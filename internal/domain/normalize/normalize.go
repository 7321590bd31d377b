// Package normalize converts raw locale-formatted records into canonical
// values: ISO dates, plain floats, and percentages kept in percent units.
// It also judges completeness and checks that printed gross, taxes and net
// agree with each other.
package normalize

import (
	"log/slog"
	"time"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/record"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
	"github.com/widia-io/investiment-scrapper-v2/pkg/money"
)

// Record is the canonical form of one statement position. Dates are
// ISO-8601 strings, amounts are reais, rates and returns stay in percent
// units ("4,93" becomes 4.93).
type Record struct {
	Section section.Section
	Page    int

	Name            *string
	IssueDate       *string
	ApplicationDate *string
	MaturityDate    *string

	InitialAmount *float64
	Indexer       *string
	IssueRate     *float64
	AnnualRate    *float64
	Quantity      *float64
	UnitPrice     *float64
	GrossValue    *float64
	Taxes         *float64
	TaxRate       *float64
	NetValue      *float64

	PortfolioShare   *float64
	MonthReturn      *float64
	SinceStartReturn *float64

	// Complete means the record carries enough to aggregate: a gross value
	// and a known section. Incomplete records are kept and reported apart.
	Complete bool

	// Reconciled is false when gross - taxes drifts from the printed net by
	// more than one cent.
	Reconciled bool
}

// Normalizer validates and converts parsed records.
type Normalizer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeAll converts records in statement order.
func (n *Normalizer) NormalizeAll(raws []*record.Raw) []Record {
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw))
	}
	return out
}

// Normalize converts one raw record. Unparseable fields are logged and left
// nil; the record itself is always returned.
func (n *Normalizer) Normalize(raw *record.Raw) Record {
	rec := Record{
		Section: raw.Section,
		Page:    raw.Page,
		Name:    raw.Name,
		Indexer: raw.Indexer,
	}

	rec.IssueDate = n.date(raw.IssueDate, "issue_date", raw)
	rec.ApplicationDate = n.date(raw.ApplicationDate, "application_date", raw)
	rec.MaturityDate = n.date(raw.MaturityDate, "maturity_date", raw)

	rec.InitialAmount = n.number(raw.InitialAmount, "initial_amount", raw)
	rec.IssueRate = n.number(raw.IssueRate, "issue_rate", raw)
	rec.AnnualRate = n.number(raw.AnnualRate, "annual_rate", raw)
	rec.Quantity = n.number(raw.Quantity, "quantity", raw)
	rec.UnitPrice = n.number(raw.UnitPrice, "unit_price", raw)
	rec.GrossValue = n.number(raw.GrossValue, "gross_value", raw)
	rec.Taxes = n.number(raw.Taxes, "taxes", raw)
	rec.TaxRate = n.number(raw.TaxRate, "tax_rate", raw)
	rec.NetValue = n.number(raw.NetValue, "net_value", raw)
	rec.PortfolioShare = n.number(raw.PortfolioShare, "portfolio_share", raw)
	rec.MonthReturn = n.number(raw.MonthReturn, "month_return", raw)
	rec.SinceStartReturn = n.number(raw.SinceStartReturn, "since_start_return", raw)

	rec.Complete = rec.GrossValue != nil && rec.Section != section.Unknown
	rec.Reconciled = n.reconcile(raw, &rec)

	return rec
}

// reconcile compares gross - taxes against the printed net in integer cents.
// Statement rows are rounded independently, so one cent of drift is normal.
func (n *Normalizer) reconcile(raw *record.Raw, rec *Record) bool {
	if raw.GrossValue == nil || raw.NetValue == nil {
		return true
	}

	gross, err := money.ParseBRL(*raw.GrossValue)
	if err != nil {
		return true
	}
	net, err := money.ParseBRL(*raw.NetValue)
	if err != nil {
		return true
	}
	taxes := money.Zero()
	if raw.Taxes != nil {
		if t, err := money.ParseBRL(*raw.Taxes); err == nil {
			taxes = t
		}
	}

	if gross.Sub(taxes).WithinCents(net, 1) {
		return true
	}

	n.logger.Warn("gross minus taxes does not match net",
		slog.String("name", record.Deref(raw.Name)),
		slog.Int("page", raw.Page),
		slog.String("gross", gross.String()),
		slog.String("taxes", taxes.String()),
		slog.String("net", net.String()))
	return false
}

func (n *Normalizer) date(value *string, field string, raw *record.Raw) *string {
	if value == nil {
		return nil
	}

	iso, err := ToISODate(*value)
	if err != nil {
		n.logger.Warn("unparseable date",
			slog.String("field", field),
			slog.String("value", *value),
			slog.Int("page", raw.Page))
		return nil
	}
	return &iso
}

func (n *Normalizer) number(value *string, field string, raw *record.Raw) *float64 {
	if value == nil {
		return nil
	}

	d, err := money.ParseNumberBR(*value)
	if err != nil {
		n.logger.Warn("unparseable number",
			slog.String("field", field),
			slog.String("value", *value),
			slog.Int("page", raw.Page))
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// ToISODate converts statement dates (DD/MM/YY or DD/MM/YYYY) to
// YYYY-MM-DD. Two-digit years are always 2000+YY; these statements never
// reference the previous century, so maturities past the stdlib's 69
// pivot must not land in 19xx.
func ToISODate(value string) (string, error) {
	layout := "02/01/2006"
	short := len(value) == 8
	if short {
		layout = "02/01/06"
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", err
	}
	if short && t.Year() < 2000 {
		t = t.AddDate(100, 0, 0)
	}
	return t.Format("2006-01-02"), nil
}
