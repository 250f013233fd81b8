package http

import (
	"context"

	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
)

// ReportProvider serves the cached report.
type ReportProvider interface {
	Latest(level risk.Level) (*services.Report, error)
}

// Scanner runs evaluations.
type Scanner interface {
	Run(ctx context.Context, trigger string) (*services.Report, error)
	Running() bool
}
