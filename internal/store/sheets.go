package store

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// SheetsStore keeps the tabs in a Google spreadsheet. The tabs must exist.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	names         SheetNames
	logger        *slog.Logger
}

// NewSheetsStore connects with a service-account credentials file. Extra
// client options (endpoint, HTTP client) are applied after the credentials.
func NewSheetsStore(ctx context.Context, spreadsheetID, credentialsFile string, names SheetNames, logger *slog.Logger, opts ...option.ClientOption) (*SheetsStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create sheets service", err)
	}
	return &SheetsStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		names:         names,
		logger:        logger.With(slog.String("component", "sheets_store")),
	}, nil
}

// Read returns the historical log in sheet order.
func (s *SheetsStore) Read(ctx context.Context) ([]domain.LogRow, error) {
	rows, err := s.get(ctx, s.names.Log)
	if err != nil {
		return nil, err
	}
	out, err := parseLogRows(rows)
	if err != nil {
		return nil, apperrors.NewParsingError("historical log sheet", err)
	}
	s.logger.DebugContext(ctx, "historical log read", slog.Int("rows", len(out)))
	return out, nil
}

// Append adds rows after the last used row.
func (s *SheetsStore) Append(ctx context.Context, rows []domain.LogRow) error {
	if len(rows) == 0 {
		return nil
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = logRowCells(r)
	}
	if err := s.append(ctx, s.names.Log, logHeader, cells); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "historical log appended", slog.Int("rows", len(rows)))
	return nil
}

// ReadPeriods returns the stored disposal periods.
func (s *SheetsStore) ReadPeriods(ctx context.Context) ([]domain.DisposalPeriod, error) {
	rows, err := s.get(ctx, s.names.Disposal)
	if err != nil {
		return nil, err
	}
	out, err := parsePeriodRows(rows)
	if err != nil {
		return nil, apperrors.NewParsingError("disposal sheet", err)
	}
	return out, nil
}

// AppendPeriods stores periods not yet present.
func (s *SheetsStore) AppendPeriods(ctx context.Context, periods []domain.DisposalPeriod) error {
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
	return s.append(ctx, s.names.Disposal, periodHeader, cells)
}

// WriteReport clears the report tab and writes header plus rows.
func (s *SheetsStore) WriteReport(ctx context.Context, report Report) error {
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, s.names.Report, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return apperrors.NewStorageError("clear report sheet", err)
	}

	values := append([][]string{report.Header}, report.Rows...)
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.names.Report+"!A1", toValueRange(values)).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return apperrors.NewStorageError("write report sheet", err)
	}

	s.logger.InfoContext(ctx, "report written",
		slog.String("spreadsheet", s.spreadsheetID),
		slog.String("eval_date", domain.DateKey(report.EvalDate)),
		slog.Int("rows", len(report.Rows)))
	return nil
}

func (s *SheetsStore) get(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheet).Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewStorageError("read sheet "+sheet, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows, nil
}

func (s *SheetsStore) append(ctx context.Context, sheet string, header []string, rows [][]string) error {
	existing, err := s.get(ctx, sheet)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		rows = append([][]string{header}, rows...)
	}
	if _, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, sheet, toValueRange(rows)).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return apperrors.NewStorageError("append to sheet "+sheet, err)
	}
	return nil
}

func toValueRange(rows [][]string) *sheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = make([]interface{}, len(r))
		for j, c := range r {
			values[i][j] = c
		}
	}
	return &sheets.ValueRange{Values: values}
}
