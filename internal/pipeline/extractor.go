package pipeline

import (
	"context"
	"log/slog"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/record"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/layout"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

// CandidateExtractor turns reconstructed statement lines into candidate
// records. Both extraction paths implement it: RulesExtractor here and
// *semantic.Extractor. The pipeline picks one per run and falls back to
// rules when the semantic path fails.
type CandidateExtractor interface {
	Extract(ctx context.Context, lines []layout.Line) ([]*record.Raw, error)
}

// RulesExtractor is the deterministic path: the section fold tags every
// line, the field parser reads data lines, the resolver recovers names from
// neighbors.
type RulesExtractor struct {
	sections *section.Classifier
	resolver *record.Resolver
	logger   *slog.Logger
}

func NewRulesExtractor(logger *slog.Logger) *RulesExtractor {
	return &RulesExtractor{
		sections: section.NewClassifier(),
		resolver: record.NewResolver(record.NewParser()),
		logger:   logger,
	}
}

// Extract never fails; lines that match nothing simply yield no records.
func (e *RulesExtractor) Extract(_ context.Context, lines []layout.Line) ([]*record.Raw, error) {
	res := e.sections.Classify(lines)
	if len(res.Preamble) > 0 {
		e.logger.Warn("dropped lines before the first section header",
			slog.Int("lines", len(res.Preamble)))
	}
	raws := e.resolver.Resolve(res.Lines)
	e.logger.Info("rule extraction finished",
		slog.Int("lines", len(lines)),
		slog.Int("data_lines", len(res.Lines)),
		slog.Int("skipped", res.Skipped),
		slog.Int("records", len(raws)))
	return raws, nil
}
