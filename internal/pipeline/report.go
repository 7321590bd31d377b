package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
)

// RunReport summarizes one finished extraction run: what went in, what came
// out, and every non-fatal issue collected along the way.
type RunReport struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	SourceFile string
	PageRange  string
	PageCount  int
	Extractor  string

	Snapshot *portfolio.Snapshot

	RecordCount       int
	CompleteCount     int
	IncompleteCount   int
	UnnamedCount      int
	UnreconciledCount int
	UnclassifiedCount int

	OutputFiles []string
	Issues      []string
}

// Partial reports a run that aggregated at least one record but had to set
// others aside as incomplete.
func (r *RunReport) Partial() bool {
	return r.CompleteCount > 0 && r.IncompleteCount > 0
}

const summaryRule = "============================================================"

// Summary renders the block printed at the end of every run. Labels follow
// the statement's language; issue lines are appended verbatim.
func (r *RunReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRESUMO DA EXTRAÇÃO\n%s\n", summaryRule, summaryRule)
	fmt.Fprintf(&b, "Arquivo: %s (%d páginas, intervalo %s)\n", r.SourceFile, r.PageCount, r.PageRange)
	fmt.Fprintf(&b, "Extrator: %s\n", r.Extractor)
	fmt.Fprintf(&b, "Registros: %d (%d completos, %d incompletos)\n", r.RecordCount, r.CompleteCount, r.IncompleteCount)
	if r.RecordCount > 0 {
		fmt.Fprintf(&b, "Nomes resolvidos: %d/%d\n", r.RecordCount-r.UnnamedCount, r.RecordCount)
	}

	if r.Snapshot != nil {
		for _, g := range r.Snapshot.Groups {
			fmt.Fprintf(&b, "\n%s\n", g.Name)
			for _, bucket := range g.Buckets {
				fmt.Fprintf(&b, "  - %s: %d registros, bruto %s\n", bucket.Key, bucket.Totals.Count, bucket.Totals.Gross.Display())
			}
		}
		fmt.Fprintf(&b, "\nTotais\n")
		fmt.Fprintf(&b, "  - Valor Bruto: %s\n", r.Snapshot.Totals.Gross.Display())
		fmt.Fprintf(&b, "  - Valor Líquido: %s\n", r.Snapshot.Totals.Net.Display())
	}

	if len(r.OutputFiles) > 0 {
		fmt.Fprintf(&b, "\nArquivos gerados\n")
		for _, f := range r.OutputFiles {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}

	if len(r.Issues) > 0 {
		fmt.Fprintf(&b, "\nAvisos (%d)\n", len(r.Issues))
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	}

	return b.String()
}
