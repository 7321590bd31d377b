// Package pipeline runs one extraction end to end: statement PDF in,
// portfolio snapshot plus output files out. The rule path is always wired;
// the semantic extractor, CNPJ enrichment, run history and metrics attach as
// optional collaborators and fail open.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/enrich"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/export"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/history"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/normalize"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/record"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/layout"
	"github.com/widia-io/investiment-scrapper-v2/pkg/config"
	"github.com/widia-io/investiment-scrapper-v2/pkg/metrics"
	"github.com/widia-io/investiment-scrapper-v2/pkg/money"
)

// Fatal conditions. Both abort the run before any output file is written.
var (
	ErrInputNotFound   = errors.New("input file not found")
	ErrNoDataExtracted = errors.New("no records extracted")
)

// Pipeline wires the extraction stages together.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger

	extractor     CandidateExtractor
	fallback      CandidateExtractor
	extractorName string

	reconstructor *layout.Reconstructor
	normalizer    *normalize.Normalizer
	classifier    *classify.Service
	writer        *export.Writer

	enricher *enrich.Service
	history  *history.Repository
	metrics  *metrics.Recorder
}

// New wires the mandatory rule path. Optional collaborators attach with the
// With methods.
func New(cfg *config.Config, classifier *classify.Service, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:           cfg,
		logger:        logger,
		extractor:     NewRulesExtractor(logger),
		extractorName: config.ExtractorRules,
		reconstructor: layout.NewReconstructor(),
		normalizer:    normalize.New(logger),
		classifier:    classifier,
		writer:        export.NewWriter(logger),
	}
}

// WithSemanticExtractor makes the model-backed extractor the primary path
// and keeps the rule path as fallback.
func (p *Pipeline) WithSemanticExtractor(ex CandidateExtractor) *Pipeline {
	p.fallback = p.extractor
	p.extractor = ex
	p.extractorName = config.ExtractorSemantic
	return p
}

// WithEnrichment adds the CNPJ lookup pass; the classified CSV then carries
// the issuer columns.
func (p *Pipeline) WithEnrichment(svc *enrich.Service) *Pipeline {
	p.enricher = svc
	return p
}

// WithHistory persists each run's snapshot and summary after the outputs
// are written.
func (p *Pipeline) WithHistory(repo *history.Repository) *Pipeline {
	p.history = repo
	return p
}

// WithMetrics counts runs, records and durations on the recorder.
func (p *Pipeline) WithMetrics(rec *metrics.Recorder) *Pipeline {
	p.metrics = rec
	return p
}

// Run extracts the configured statement once. A non-nil report comes back
// only after every output file is in place; fatal errors leave nothing
// behind.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	report, err := p.run(ctx, started)

	if p.metrics != nil {
		elapsed := time.Since(started)
		if err != nil {
			p.metrics.ObserveFailure(elapsed)
		} else {
			outcome := metrics.OutcomeOK
			if report.Partial() {
				outcome = metrics.OutcomePartial
			}
			p.metrics.ObserveRun(outcome, report.CompleteCount, report.IncompleteCount,
				report.Snapshot.Totals.Gross.Float64(), elapsed)
		}
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, started time.Time) (*RunReport, error) {
	report := &RunReport{
		RunID:      uuid.New(),
		StartedAt:  started,
		SourceFile: p.cfg.Input.PDFPath,
		Extractor:  p.extractorName,
	}

	pages, err := layout.ParsePageRange(p.cfg.Input.PageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", p.cfg.Input.PageRange, err)
	}
	report.PageRange = pages.String()

	doc, err := layout.OpenDocument(p.cfg.Input.PDFPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p.cfg.Input.PDFPath, ErrInputNotFound)
		}
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer doc.Close()
	report.PageCount = doc.PageCount()

	p.logger.Info("extraction run started",
		slog.String("run_id", report.RunID.String()),
		slog.String("source", report.SourceFile),
		slog.Int("pages", report.PageCount),
		slog.String("page_range", report.PageRange),
		slog.String("extractor", p.extractorName))

	tokens, err := doc.Tokens(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement text: %w", err)
	}
	lines := p.reconstructor.Lines(tokens)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s pages %s: %w", report.SourceFile, report.PageRange, ErrNoDataExtracted)
	}

	raws, err := p.extract(ctx, lines, report)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%s pages %s: %w", report.SourceFile, report.PageRange, ErrNoDataExtracted)
	}

	records := p.normalizer.NormalizeAll(raws)

	items := make([]classify.Item, len(records))
	for i := range records {
		items[i] = classify.Item{Name: record.Deref(records[i].Name), Section: records[i].Section}
	}
	classifications := p.classifier.ClassifyAll(ctx, items)

	positions := make([]*portfolio.Position, len(records))
	for i := range records {
		positions[i] = &portfolio.Position{Record: records[i], Classification: classifications[i]}
	}

	snap := portfolio.Build(portfolio.Metadata{
		ExtractedAt: started,
		Institution: p.cfg.Input.Institution,
		Source:      filepath.Base(report.SourceFile),
	}, positions)

	report.Snapshot = snap
	p.summarize(records, classifications, snap, report)

	if report.CompleteCount == 0 {
		return nil, fmt.Errorf("%d records, none complete: %w", report.RecordCount, ErrNoDataExtracted)
	}

	p.validate(snap, report)

	if err := p.writeOutputs(ctx, snap, report); err != nil {
		return nil, err
	}

	if err := p.classifier.SaveCache(); err != nil {
		p.logger.Warn("failed to save classification cache", slog.Any("error", err))
	}

	report.FinishedAt = time.Now()

	if p.history != nil {
		p.saveHistory(ctx, report, snap)
	}

	p.logger.Info("extraction run finished",
		slog.String("run_id", report.RunID.String()),
		slog.String("extractor", report.Extractor),
		slog.Int("records", report.RecordCount),
		slog.Int("complete", report.CompleteCount),
		slog.Int("incomplete", report.IncompleteCount),
		slog.String("gross", snap.Totals.Gross.Display()),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

// summarize fills the report's counts from the normalized records and turns
// every non-zero soft count into a run issue. Unresolved names are counted
// here so the summary can state how many records kept a name.
func (p *Pipeline) summarize(records []normalize.Record, classifications []classify.Classification, snap *portfolio.Snapshot, report *RunReport) {
	report.RecordCount = snap.Len()
	report.CompleteCount = snap.Totals.Count
	report.IncompleteCount = len(snap.Incomplete)
	for i := range records {
		if records[i].Name == nil {
			report.UnnamedCount++
		}
		if !records[i].Reconciled {
			report.UnreconciledCount++
		}
	}
	for i := range classifications {
		if classifications[i].Category == "" {
			report.UnclassifiedCount++
		}
	}

	if report.IncompleteCount > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d incomplete records kept out of totals", report.IncompleteCount))
	}
	if report.UnnamedCount > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d of %d records kept without a resolved name", report.UnnamedCount, report.RecordCount))
	}
	if report.UnreconciledCount > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d records where gross minus taxes drifts from net", report.UnreconciledCount))
	}
	if report.UnclassifiedCount > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d positions without a category", report.UnclassifiedCount))
	}
}

// extract runs the primary extractor and, when it fails and a fallback is
// wired, the rule path. Only a failure of the last resort is fatal.
func (p *Pipeline) extract(ctx context.Context, lines []layout.Line, report *RunReport) ([]*record.Raw, error) {
	raws, err := p.extractor.Extract(ctx, lines)
	if err == nil {
		return raws, nil
	}
	if p.fallback == nil {
		return nil, fmt.Errorf("failed to extract records: %w", err)
	}

	p.logger.Warn("semantic extraction failed, falling back to rules", slog.Any("error", err))
	report.Issues = append(report.Issues, fmt.Sprintf("semantic extraction failed, rule path used: %v", err))
	report.Extractor = config.ExtractorRules

	raws, err = p.fallback.Extract(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to extract records: %w", err)
	}
	return raws, nil
}

// validate compares the snapshot against the configured expectations. A
// mismatch is a warning, never an error: the point is catching silent layout
// drift between statements.
func (p *Pipeline) validate(snap *portfolio.Snapshot, report *RunReport) {
	v := p.cfg.Validation

	if v.ExpectedRecords > 0 && snap.Totals.Count != v.ExpectedRecords {
		report.Issues = append(report.Issues,
			fmt.Sprintf("expected %d complete records, extracted %d", v.ExpectedRecords, snap.Totals.Count))
	}

	keys := make([]string, 0, len(v.ExpectedSections))
	for key := range v.ExpectedSections {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if got := sectionCount(snap, key); got != v.ExpectedSections[key] {
			report.Issues = append(report.Issues,
				fmt.Sprintf("expected %d records in %s, extracted %d", v.ExpectedSections[key], key, got))
		}
	}

	if v.ExpectedGross > 0 {
		want := money.FromFloat(v.ExpectedGross)
		tolerance := money.FromFloat(v.GrossTolerance)
		if !snap.Totals.Gross.WithinCents(want, tolerance.Cents()) {
			report.Issues = append(report.Issues,
				fmt.Sprintf("gross total %s outside expected %s (tolerance %s)",
					snap.Totals.Gross.Display(), want.Display(), tolerance.Display()))
		}
	}
}

func sectionCount(snap *portfolio.Snapshot, key string) int {
	for _, g := range snap.Groups {
		for _, b := range g.Buckets {
			if b.Key == key {
				return b.Totals.Count
			}
		}
	}
	return 0
}

// writeOutputs emits the flat CSV, the hierarchical JSON and the classified
// CSV. With enrichment wired the classified CSV carries the issuer columns,
// matching the sheet the enrichment pass used to rewrite in place.
func (p *Pipeline) writeOutputs(ctx context.Context, snap *portfolio.Snapshot, report *RunReport) error {
	csvPath := filepath.Join(p.cfg.Output.Dir, p.cfg.Output.CSVName)
	if err := p.writer.WriteFlatCSV(snap, csvPath); err != nil {
		return err
	}
	report.OutputFiles = append(report.OutputFiles, csvPath)

	jsonPath := filepath.Join(p.cfg.Output.Dir, p.cfg.Output.JSONName)
	if err := p.writer.WriteJSON(snap, jsonPath); err != nil {
		return err
	}
	report.OutputFiles = append(report.OutputFiles, jsonPath)

	classifiedPath := filepath.Join(p.cfg.Output.Dir, p.cfg.Output.ClassifiedCSVName)
	if p.enricher != nil {
		names := make([]string, 0, snap.Len())
		for _, pos := range snap.All() {
			names = append(names, record.Deref(pos.Name))
		}
		issuers := p.enricher.ResolveAll(ctx, names)
		if err := p.writer.WriteEnrichedCSV(snap, issuers, classifiedPath); err != nil {
			return err
		}
	} else {
		if err := p.writer.WriteClassifiedCSV(snap, classifiedPath); err != nil {
			return err
		}
	}
	report.OutputFiles = append(report.OutputFiles, classifiedPath)
	return nil
}

// saveHistory stores the finished run. History is best effort: a database
// failure downgrades to a warning on the report.
func (p *Pipeline) saveHistory(ctx context.Context, report *RunReport, snap *portfolio.Snapshot) {
	payload, err := export.MarshalSnapshot(snap)
	if err != nil {
		p.logger.Warn("failed to encode snapshot for history", slog.Any("error", err))
		return
	}
	run := &history.Run{
		ID:              report.RunID,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		SourceFile:      report.SourceFile,
		Extractor:       report.Extractor,
		RecordCount:     report.RecordCount,
		CompleteCount:   report.CompleteCount,
		IncompleteCount: report.IncompleteCount,
		GrossTotalCents: snap.Totals.Gross.Cents(),
		NetTotalCents:   snap.Totals.Net.Cents(),
		Snapshot:        payload,
	}
	if err := p.history.SaveRun(ctx, run); err != nil {
		p.logger.Warn("failed to persist run history", slog.Any("error", err))
		report.Issues = append(report.Issues, "run history not persisted: "+err.Error())
	}
}
