package services

import "errors"

var (
	// ErrScanRunning is returned when a scan is requested while one is active.
	ErrScanRunning = errors.New("scan already running")
	// ErrNoReport is returned before the first scan has completed.
	ErrNoReport = errors.New("no report available")
	// ErrEmptyCalendar is returned when the calendar source yields no dates.
	ErrEmptyCalendar = errors.New("empty trading calendar")
)
