package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
)

// logFile is the file opened by InitializeLogger, closed by CloseLogFile.
var logFile struct {
	sync.Mutex
	once   sync.Once
	file   *os.File
	logger *slog.Logger
	err    error
}

// InitializeLogger builds the process logger from cfg and installs it as the
// slog default. Later calls return the first result.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	logFile.once.Do(func() {
		var w io.Writer
		w, logFile.err = logOutput(cfg)
		if logFile.err != nil {
			return
		}
		logFile.logger = NewLogger(w, cfg.Format, ParseLogLevel(cfg.Level))
		slog.SetDefault(logFile.logger)
	})
	return logFile.logger, logFile.err
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
func CloseLogFile() error {
	logFile.Lock()
	defer logFile.Unlock()
	if logFile.file == nil {
		return nil
	}
	err := logFile.file.Close()
	logFile.file = nil
	return err
}

// resetLogger forgets the installed logger. Tests only.
func resetLogger() {
	_ = CloseLogFile()
	logFile.once = sync.Once{}
	logFile.logger = nil
	logFile.err = nil
}

// NewLogger returns a logger writing format ("json" or "text") to w. Records
// logged with a context carry its trace and span IDs.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&correlatingHandler{next: h})
}

// ParseLogLevel maps a configured level name to a slog level. Unknown names
// mean info.
func ParseLogLevel(level string) slog.Level {
	var l slog.Level
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func logOutput(cfg config.LoggingConfig) (io.Writer, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nil
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log output %q needs a file path", cfg.Output)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}

	logFile.Lock()
	logFile.file = f
	logFile.Unlock()

	if output == "both" {
		return io.MultiWriter(os.Stdout, f), nil
	}
	return f, nil
}

type correlatingHandler struct {
	next slog.Handler
}

func (h *correlatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *correlatingHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	if id := SpanID(ctx); id != "" {
		r.AddAttrs(slog.String("span_id", id))
	}
	return h.next.Handle(ctx, r)
}

func (h *correlatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlatingHandler{next: h.next.WithAttrs(attrs)}
}

func (h *correlatingHandler) WithGroup(name string) slog.Handler {
	return &correlatingHandler{next: h.next.WithGroup(name)}
}
