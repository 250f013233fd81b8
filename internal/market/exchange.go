package market

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

type exchangeTable struct {
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

type exchangeResponse struct {
	Stat   string          `json:"stat"`
	Fields []string        `json:"fields"`
	Data   [][]string      `json:"data"`
	Tables []exchangeTable `json:"tables"`
}

// published reports errNotPublished unless the exchange flagged the
// response OK. A missing stat is accepted.
func (r exchangeResponse) published() error {
	if stat := strings.TrimSpace(r.Stat); stat != "" && !strings.EqualFold(stat, "OK") {
		return fmt.Errorf("%w: %s", errNotPublished, stat)
	}
	return nil
}

// tables returns the top-level table and any nested ones.
func (r exchangeResponse) tables() []exchangeTable {
	out := make([]exchangeTable, 0, len(r.Tables)+1)
	if len(r.Fields) > 0 {
		out = append(out, exchangeTable{Fields: r.Fields, Data: r.Data})
	}
	return append(out, r.Tables...)
}

func (t exchangeTable) column(name string) int {
	for i, f := range t.Fields {
		if strings.TrimSpace(f) == name {
			return i
		}
	}
	return -1
}

// parseNumber reads exchange numerals such as "1,234.5"; "-" and blanks are 0.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" || s == "--" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// valuations extracts PE and PB per stock from a BWIBBU table.
func valuations(resp exchangeResponse) map[string]domain.Fundamentals {
	out := make(map[string]domain.Fundamentals)
	for _, t := range resp.tables() {
		code, pe, pb := t.column("證券代號"), t.column("本益比"), t.column("股價淨值比")
		if code < 0 || (pe < 0 && pb < 0) {
			continue
		}
		for _, row := range t.Data {
			if code >= len(row) {
				continue
			}
			var f domain.Fundamentals
			if pe >= 0 && pe < len(row) {
				f.PE = parseNumber(row[pe])
			}
			if pb >= 0 && pb < len(row) {
				f.PB = parseNumber(row[pb])
			}
			out[strings.TrimSpace(row[code])] = f
		}
	}
	return out
}

// dayTradeShares extracts the day-trade share count per stock from a
// TWTB4U response.
func dayTradeShares(resp exchangeResponse) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range resp.tables() {
		code, shares := t.column("證券代號"), t.column("當日沖銷交易成交股數")
		if code < 0 || shares < 0 {
			continue
		}
		for _, row := range t.Data {
			if code >= len(row) || shares >= len(row) {
				continue
			}
			out[strings.TrimSpace(row[code])] = parseNumber(row[shares])
		}
	}
	return out
}
