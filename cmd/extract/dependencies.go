package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/enrich"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/history"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/semantic"
	"github.com/widia-io/investiment-scrapper-v2/internal/pipeline"
	"github.com/widia-io/investiment-scrapper-v2/pkg/config"
	"github.com/widia-io/investiment-scrapper-v2/pkg/mail"
	"github.com/widia-io/investiment-scrapper-v2/pkg/metrics"
	"github.com/widia-io/investiment-scrapper-v2/pkg/storage"
)

// Dependencies holds everything a run needs, wired once at startup.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	Recorder *metrics.Recorder
	Mailer   *mail.Mailer
	Archive  *storage.Archive

	history *history.Repository
}

// buildDependencies wires the pipeline from configuration. Optional
// collaborators attach only when their configuration is present.
func buildDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Recorder: metrics.NewRecorder()}

	var provider *semantic.GeminiProvider
	var batch classify.SemanticClassifier
	if cfg.Gemini.Enabled() {
		provider = semantic.NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model,
			time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second)
		batch = semantic.NewClassifier(provider, logger)
	}

	classifier := classify.NewService(classify.OpenCache(cfg.Classify.CachePath), batch, logger)
	p := pipeline.New(cfg, classifier, logger).WithMetrics(deps.Recorder)

	if cfg.Extractor.Mode == config.ExtractorSemantic {
		if provider == nil {
			return nil, fmt.Errorf("EXTRACTOR=%s requires GEMINI_API_KEY", config.ExtractorSemantic)
		}
		p.WithSemanticExtractor(semantic.NewExtractor(provider, cfg.Validation.ExpectedRecords, logger))
	}

	if cfg.Enrich.Enabled {
		if provider == nil {
			logger.Warn("CNPJ_ENRICH is set but GEMINI_API_KEY is not, enrichment disabled")
		} else {
			p.WithEnrichment(enrich.NewService(provider, cfg.Enrich.CachePath, cfg.Enrich.RequestsPerMinute, logger))
		}
	}

	if cfg.Database.Enabled() {
		repo, err := history.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		deps.history = repo
		p.WithHistory(repo)
	}

	if cfg.Output.ArchiveDir != "" {
		archive, err := storage.NewArchive(cfg.Output.ArchiveDir, logger)
		if err != nil {
			return nil, err
		}
		deps.Archive = archive
	}

	deps.Mailer = mail.NewMailer(cfg.Mail.ResendAPIKey, cfg.Mail.From, cfg.Mail.To, logger)
	deps.Pipeline = p

	return deps, nil
}

// Close releases held connections.
func (d *Dependencies) Close() {
	if d.history != nil {
		d.history.Close()
	}
}

// FinishRun handles everything after a successful run: the summary on
// stdout, then archiving and the email notification. Neither of the last
// two can fail the run.
func (d *Dependencies) FinishRun(report *pipeline.RunReport, logger *slog.Logger) {
	fmt.Println(report.Summary())

	if d.Archive != nil {
		if _, err := d.Archive.Store(report.RunID, report.SourceFile, report.OutputFiles); err != nil {
			logger.Warn("failed to archive run outputs", slog.Any("error", err))
		}
	}
	if err := d.Mailer.SendRunSummary(report); err != nil {
		logger.Warn("failed to email run summary", slog.Any("error", err))
	}
}
