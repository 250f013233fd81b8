// Package exporter writes reports as UTF-8 CSV with a byte order mark so
// spreadsheet tools open the Chinese headers correctly.
package exporter
