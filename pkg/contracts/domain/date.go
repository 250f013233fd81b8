package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format used across logs and reports.
const DateLayout = "2006-01-02"

// Taipei is the exchange time zone.
var Taipei = time.FixedZone("Asia/Taipei", 8*60*60)

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts YYYY-MM-DD, YYYY/MM/DD and ROC dates (113/10/15, 1131015).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2006/01/02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return ParseROCDate(s)
}

// ParseROCDate parses a Minguo calendar date such as "113/10/15" or "1131015".
func ParseROCDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var year, month, day int
	var err error

	if parts := strings.Split(s, "/"); len(parts) == 3 {
		if year, err = strconv.Atoi(parts[0]); err != nil {
			return time.Time{}, fmt.Errorf("parse roc year %q: %w", s, err)
		}
		if month, err = strconv.Atoi(parts[1]); err != nil {
			return time.Time{}, fmt.Errorf("parse roc month %q: %w", s, err)
		}
		if day, err = strconv.Atoi(parts[2]); err != nil {
			return time.Time{}, fmt.Errorf("parse roc day %q: %w", s, err)
		}
	} else {
		if len(s) < 6 || len(s) > 7 {
			return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
		}
		year, month, day = n/10000, (n/100)%100, n%100
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date out of range: %s", s)
	}
	t := time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, fmt.Errorf("date out of range: %s", s)
	}
	return t, nil
}
