// Package export renders portfolio snapshots into the output files: the flat
// position CSV, the hierarchical JSON document and the classified CSV. The
// JSON document doubles as the persisted intermediate and loads back into a
// snapshot. All files are written atomically so a failed run leaves nothing
// behind.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/widia-io/investiment-scrapper-v2/pkg/money"
)

// Spreadsheet tools on Windows need the BOM to pick UTF-8.
const utf8BOM = "\xef\xbb\xbf"

// Writer renders snapshots into files.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

// writeAtomic writes through a temp file in the target directory and renames
// it over the destination, creating the directory when missing.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// number renders an optional float in statement format, empty when absent.
func number(v *float64) string {
	if v == nil {
		return ""
	}
	return money.FormatNumberBR(*v)
}

// plainNumber renders an optional float with a dot decimal and no grouping.
func plainNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// statementDate converts an ISO date back to the dd/mm/aa the statement
// prints. Unparseable values pass through unchanged.
func statementDate(iso *string) string {
	if iso == nil {
		return ""
	}
	t, err := time.Parse("2006-01-02", *iso)
	if err != nil {
		return *iso
	}
	return t.Format("02/01/06")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
