// The flatten command rebuilds the classified CSV from a snapshot written
// by a previous extraction, without touching the PDF. Positions the
// snapshot left unclassified are classified now; existing classifications
// are kept as they are.
//
// Usage:
//
//	flatten [snapshot.json]
//
// The positional argument overrides the snapshot path derived from
// OUTPUT_DIR and OUTPUT_JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/export"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/record"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/semantic"
	"github.com/widia-io/investiment-scrapper-v2/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return 1
	}

	snapshotPath := filepath.Join(cfg.Output.Dir, cfg.Output.JSONName)
	if path := flag.Arg(0); path != "" {
		snapshotPath = path
	}

	snap, err := export.LoadSnapshot(snapshotPath)
	if err != nil {
		logger.Error("failed to load snapshot", slog.String("path", snapshotPath), slog.Any("error", err))
		return 1
	}

	var batch classify.SemanticClassifier
	if cfg.Gemini.Enabled() {
		provider := semantic.NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model,
			time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second)
		batch = semantic.NewClassifier(provider, logger)
	}
	classifier := classify.NewService(classify.OpenCache(cfg.Classify.CachePath), batch, logger)

	filled := classifyPending(context.Background(), snap, classifier)
	if err := classifier.SaveCache(); err != nil {
		logger.Warn("failed to save classification cache", slog.Any("error", err))
	}

	outPath := filepath.Join(cfg.Output.Dir, cfg.Output.ClassifiedCSVName)
	if err := export.NewWriter(logger).WriteClassifiedCSV(snap, outPath); err != nil {
		logger.Error("failed to write classified csv", slog.Any("error", err))
		return 1
	}

	fmt.Printf("%s: %d posições, %d classificadas agora\n", outPath, snap.Len(), filled)
	return 0
}

// classifyPending fills in the classifications the snapshot is missing and
// reports how many it filled.
func classifyPending(ctx context.Context, snap *portfolio.Snapshot, classifier *classify.Service) int {
	positions := snap.All()

	var pending []int
	var items []classify.Item
	for i, p := range positions {
		if p.Classification.IsZero() {
			pending = append(pending, i)
			items = append(items, classify.Item{Name: record.Deref(p.Name), Section: p.Section})
		}
	}
	if len(items) == 0 {
		return 0
	}

	results := classifier.ClassifyAll(ctx, items)
	for n, i := range pending {
		positions[i].Classification = results[n]
	}
	return len(items)
}
