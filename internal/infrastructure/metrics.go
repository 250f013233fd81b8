package infrastructure

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScanMetrics holds the application metrics.
type ScanMetrics struct {
	ScansTotal          metric.Int64Counter
	ScanDuration        metric.Float64Histogram
	ScanActive          metric.Int64UpDownCounter
	ReportRows          metric.Int64Counter
	FetchErrors         metric.Int64Counter
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewScanMetrics registers the application instruments on meter.
func NewScanMetrics(meter metric.Meter) (*ScanMetrics, error) {
	var (
		m   ScanMetrics
		err error
	)
	if m.ScansTotal, err = meter.Int64Counter("scan_runs_total",
		metric.WithDescription("Total number of scan runs")); err != nil {
		return nil, err
	}
	if m.ScanDuration, err = meter.Float64Histogram("scan_duration_seconds",
		metric.WithDescription("Scan run duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ScanActive, err = meter.Int64UpDownCounter("scan_active",
		metric.WithDescription("Number of scans in progress")); err != nil {
		return nil, err
	}
	if m.ReportRows, err = meter.Int64Counter("report_rows_total",
		metric.WithDescription("Report rows produced, by risk level")); err != nil {
		return nil, err
	}
	if m.FetchErrors, err = meter.Int64Counter("collaborator_errors_total",
		metric.WithDescription("Failed calls to external collaborators")); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordScan records one finished scan. rowsByLevel may be nil on failure.
func (m *ScanMetrics) RecordScan(ctx context.Context, trigger string, duration time.Duration, rowsByLevel map[string]int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status))
	m.ScansTotal.Add(ctx, 1, attrs)
	m.ScanDuration.Record(ctx, duration.Seconds(), attrs)
	for level, n := range rowsByLevel {
		m.ReportRows.Add(ctx, int64(n), metric.WithAttributes(attribute.String("level", level)))
	}
}

// RecordActive adjusts the in-progress scan gauge.
func (m *ScanMetrics) RecordActive(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ScanActive.Add(ctx, delta)
}

// RecordFetchError counts a failed collaborator call.
func (m *ScanMetrics) RecordFetchError(ctx context.Context, collaborator string) {
	if m == nil {
		return
	}
	m.FetchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("collaborator", collaborator)))
}

// RecordHTTPRequest records one served request.
func (m *ScanMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)))
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
