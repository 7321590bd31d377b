// Package storage archives the output files of finished runs, so a
// scheduled re-extraction never overwrites yesterday's results.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunArtifacts describes one archived run.
type RunArtifacts struct {
	RunID      uuid.UUID `json:"run_id"`
	SourceFile string    `json:"source_file"`
	Files      []string  `json:"files"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archive stores run outputs under a base directory, one subdirectory per
// run, with a metadata sidecar for listing.
type Archive struct {
	basePath string
	logger   *slog.Logger
}

// NewArchive creates the archive directory when missing.
func NewArchive(basePath string, logger *slog.Logger) (*Archive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{basePath: basePath, logger: logger}, nil
}

// Store copies the given files into a fresh run directory. A failed copy
// removes the partial directory and archives nothing.
func (a *Archive) Store(runID uuid.UUID, sourceFile string, paths []string) (*RunArtifacts, error) {
	stamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(a.basePath, fmt.Sprintf("%s_%s", stamp, runID.String()[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	info := &RunArtifacts{
		RunID:      runID,
		SourceFile: sourceFile,
		ArchivedAt: time.Now(),
	}
	for _, path := range paths {
		name := filepath.Base(path)
		if err := copyFile(path, filepath.Join(dir, name)); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to archive %s: %w", name, err)
		}
		info.Files = append(info.Files, name)
	}

	meta, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to encode run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), meta, 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write run metadata: %w", err)
	}

	a.logger.Info("run outputs archived",
		slog.String("run_id", runID.String()),
		slog.String("dir", dir),
		slog.Int("files", len(info.Files)))
	return info, nil
}

// List returns archived runs, newest first. The stamp prefix on the run
// directories sorts chronologically.
func (a *Archive) List() ([]*RunArtifacts, error) {
	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	runs := make([]*RunArtifacts, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(a.basePath, name, "run.json"))
		if err != nil {
			// a directory without metadata is not ours
			continue
		}
		var info RunArtifacts
		if err := json.Unmarshal(data, &info); err != nil {
			a.logger.Warn("skipping unreadable run metadata",
				slog.String("dir", name), slog.Any("error", err))
			continue
		}
		runs = append(runs, &info)
	}
	return runs, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
