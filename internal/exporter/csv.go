package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/M1229012/Stock-V116-sub000/internal/store"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// utf8BOM lets Excel recognize UTF-8 CSV files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes header and records to w.
func WriteCSV(w io.Writer, header []string, records [][]string, bom bool) error {
	if bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	writer := csv.NewWriter(w)
	if len(header) > 0 {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVWriter keeps one CSV file per evaluation date in a directory.
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir.
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger.With(slog.String("component", "csv_exporter"))}
}

// Path returns the file used for evalDate.
func (w *CSVWriter) Path(evalDate time.Time) string {
	return filepath.Join(w.dir, "disposal_watch_"+domain.DateKey(evalDate)+".csv")
}

// WriteReport replaces the file of the report's evaluation date.
func (w *CSVWriter) WriteReport(ctx context.Context, report store.Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	path := w.Path(report.EvalDate)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	if err := WriteCSV(file, report.Header, report.Rows, true); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	w.logger.InfoContext(ctx, "csv report written",
		slog.String("path", path),
		slog.Int("records", len(report.Rows)))
	return nil
}
