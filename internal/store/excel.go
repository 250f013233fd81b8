package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// ExcelStore keeps every tab in a single workbook on disk. Calls are
// serialized; the workbook is reopened on each call so external edits are
// picked up.
type ExcelStore struct {
	path   string
	names  SheetNames
	mu     sync.Mutex
	logger *slog.Logger
}

// NewExcelStore creates a store backed by the workbook at path. The file is
// created on first write.
func NewExcelStore(path string, names SheetNames, logger *slog.Logger) *ExcelStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelStore{
		path:   path,
		names:  names,
		logger: logger.With(slog.String("component", "excel_store")),
	}
}

// Read returns the historical log in file order.
func (s *ExcelStore) Read(ctx context.Context) ([]domain.LogRow, error) {
	rows, err := s.readSheet(s.names.Log)
	if err != nil {
		return nil, err
	}
	out, err := parseLogRows(rows)
	if err != nil {
		return nil, apperrors.NewParsingError("historical log "+s.path, err)
	}
	s.logger.DebugContext(ctx, "historical log read", slog.Int("rows", len(out)))
	return out, nil
}

// Append adds rows to the end of the log.
func (s *ExcelStore) Append(ctx context.Context, rows []domain.LogRow) error {
	if len(rows) == 0 {
		return nil
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = logRowCells(r)
	}
	if err := s.appendRows(s.names.Log, logHeader, cells); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "historical log appended", slog.Int("rows", len(rows)))
	return nil
}

// ReadPeriods returns the stored disposal periods.
func (s *ExcelStore) ReadPeriods(ctx context.Context) ([]domain.DisposalPeriod, error) {
	rows, err := s.readSheet(s.names.Disposal)
	if err != nil {
		return nil, err
	}
	out, err := parsePeriodRows(rows)
	if err != nil {
		return nil, apperrors.NewParsingError("disposal periods "+s.path, err)
	}
	return out, nil
}

// AppendPeriods stores periods not yet present.
func (s *ExcelStore) AppendPeriods(ctx context.Context, periods []domain.DisposalPeriod) error {
	existing, err := s.ReadPeriods(ctx)
	if err != nil {
		return err
	}
	fresh := newPeriods(existing, periods)
	if len(fresh) == 0 {
		return nil
	}
	cells := make([][]string, len(fresh))
	for i, p := range fresh {
		cells[i] = periodCells(p)
	}
	if err := s.appendRows(s.names.Disposal, periodHeader, cells); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "disposal periods stored", slog.Int("periods", len(fresh)))
	return nil
}

// WriteReport replaces the report tab.
func (s *ExcelStore) WriteReport(ctx context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	// Keep the log tab around so the report tab is never the only sheet.
	if err := ensureSheet(f, s.names.Log, logHeader); err != nil {
		return apperrors.NewStorageError("prepare log sheet", err)
	}
	if idx, _ := f.GetSheetIndex(s.names.Report); idx >= 0 {
		if err := f.DeleteSheet(s.names.Report); err != nil {
			return apperrors.NewStorageError("clear report sheet", err)
		}
	}
	if err := ensureSheet(f, s.names.Report, report.Header); err != nil {
		return apperrors.NewStorageError("create report sheet", err)
	}
	for i, row := range report.Rows {
		if err := setRow(f, s.names.Report, i+2, row); err != nil {
			return apperrors.NewStorageError("write report row", err)
		}
	}
	if err := f.SetPanes(s.names.Report, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return apperrors.NewStorageError("freeze report header", err)
	}

	if err := s.save(f); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "report written",
		slog.String("path", s.path),
		slog.String("eval_date", domain.DateKey(report.EvalDate)),
		slog.Int("rows", len(report.Rows)))
	return nil
}

func (s *ExcelStore) readSheet(sheet string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, apperrors.NewStorageError("open workbook "+s.path, err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewStorageError("read sheet "+sheet, err)
	}
	return rows, nil
}

func (s *ExcelStore) appendRows(sheet string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureSheet(f, sheet, header); err != nil {
		return apperrors.NewStorageError("prepare sheet "+sheet, err)
	}
	existing, err := f.GetRows(sheet)
	if err != nil {
		return apperrors.NewStorageError("read sheet "+sheet, err)
	}
	next := len(existing) + 1
	for i, row := range rows {
		if err := setRow(f, sheet, next+i, row); err != nil {
			return apperrors.NewStorageError("append to sheet "+sheet, err)
		}
	}
	return s.save(f)
}

// open returns the workbook, or a new one whose default tab is removed once
// another sheet exists.
func (s *ExcelStore) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, apperrors.NewStorageError("open workbook "+s.path, err)
	}
	return f, nil
}

func (s *ExcelStore) save(f *excelize.File) error {
	if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 && len(f.GetSheetList()) > 1 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return apperrors.NewStorageError("drop default sheet", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.NewStorageError("create workbook directory", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return apperrors.NewStorageError("save workbook "+s.path, err)
	}
	return nil
}

// ensureSheet creates sheet with its header row when missing.
func ensureSheet(f *excelize.File, sheet string, header []string) error {
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return setRow(f, sheet, 1, header)
}

// setRow writes cells as text so codes like 0050 keep their leading zero.
func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return f.SetSheetRow(sheet, cell, &values)
}
