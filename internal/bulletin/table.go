package bulletin

import (
	"fmt"
	"strings"
	"time"

	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// Column aliases. The exchanges rename headers from time to time; the first
// alias present wins.
var (
	colCode     = []string{"證券代號", "股票代號", "代號"}
	colName     = []string{"證券名稱", "股票名稱", "名稱"}
	colInfo     = []string{"注意交易資訊", "注意交易資訊內容", "公告內容"}
	colDate     = []string{"日期", "公告日期", "公布日期"}
	colPeriod   = []string{"處置起迄時間", "處置起訖時間", "處置期間"}
	periodSplit = []string{"～", "~", "至", "－", "-"}
)

// table is the fields+data shape both exchanges use in their JSON feeds.
type table struct {
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

// column returns the index of the first alias present in fields, or -1.
func (t table) column(aliases []string) int {
	for _, alias := range aliases {
		for i, f := range t.Fields {
			if strings.TrimSpace(f) == alias {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// attentionRows converts a bulletin table into log rows. Rows without a date
// column are stamped with fallback.
func attentionRows(t table, market domain.Market, fallback time.Time) ([]domain.LogRow, error) {
	codeIdx, infoIdx := t.column(colCode), t.column(colInfo)
	if codeIdx < 0 || infoIdx < 0 {
		return nil, fmt.Errorf("attention table missing code or info column, fields=%v", t.Fields)
	}
	nameIdx, dateIdx := t.column(colName), t.column(colDate)

	rows := make([]domain.LogRow, 0, len(t.Data))
	for _, r := range t.Data {
		code := cell(r, codeIdx)
		if code == "" {
			continue
		}
		date := domain.Day(fallback)
		if raw := cell(r, dateIdx); raw != "" {
			parsed, err := domain.ParseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("stock %s: %w", code, err)
			}
			date = parsed
		}
		rows = append(rows, domain.LogRow{
			Date:       date,
			Market:     market,
			Code:       code,
			Name:       cell(r, nameIdx),
			ClauseText: cell(r, infoIdx),
		})
	}
	return rows, nil
}

// disposalPeriods converts a disposal table into periods.
func disposalPeriods(t table) ([]domain.DisposalPeriod, error) {
	codeIdx, periodIdx := t.column(colCode), t.column(colPeriod)
	if codeIdx < 0 || periodIdx < 0 {
		return nil, fmt.Errorf("disposal table missing code or period column, fields=%v", t.Fields)
	}
	nameIdx := t.column(colName)

	periods := make([]domain.DisposalPeriod, 0, len(t.Data))
	for _, r := range t.Data {
		code := cell(r, codeIdx)
		if code == "" {
			continue
		}
		start, end, err := parsePeriod(cell(r, periodIdx))
		if err != nil {
			return nil, fmt.Errorf("stock %s: %w", code, err)
		}
		periods = append(periods, domain.DisposalPeriod{
			Code:  code,
			Name:  cell(r, nameIdx),
			Start: start,
			End:   end,
		})
	}
	return periods, nil
}

// parsePeriod splits "113/10/16～113/10/29" into its inclusive bounds.
func parsePeriod(s string) (time.Time, time.Time, error) {
	for _, sep := range periodSplit {
		parts := strings.SplitN(s, sep, 2)
		if len(parts) != 2 {
			continue
		}
		start, err := domain.ParseDate(parts[0])
		if err != nil {
			continue
		}
		end, err := domain.ParseDate(parts[1])
		if err != nil {
			continue
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("disposal period %q ends before it starts", s)
		}
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unrecognized disposal period %q", s)
}
