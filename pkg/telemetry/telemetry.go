// Package telemetry provides append-only request and error logging. Every
// sink in this package is best-effort: a write failure is logged and
// swallowed, never propagated to the caller that triggered it.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// RequestLogEntry records one terminating execute call.
type RequestLogEntry struct {
	RequestID        string
	LanguageTitle    string
	Status           string
	ExecutionTimeMs  *int64
	MemoryUsageBytes *int64
	DurationMs       int64
	Cached           bool
	CreatedAt        time.Time
}

// ErrorLogEntry records one failure.
type ErrorLogEntry struct {
	RequestID string
	Kind      lambdaerr.Kind
	Message   string
	CreatedAt time.Time
}

// Sink is the append-only telemetry contract. Implementations never fail
// the orchestrator on a failing sink: a write error is logged, not
// returned. Calls are synchronous, so a slow sink delays the caller.
type Sink interface {
	LogRequest(ctx context.Context, entry RequestLogEntry) error
	LogError(ctx context.Context, entry ErrorLogEntry) error
}

// SQLSink writes to the meta.request_logs / meta.error_logs tables.
type SQLSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLSink returns a Sink backed by db. logger is used to report
// write failures; if nil, slog.Default() is used.
func NewSQLSink(db *sql.DB, logger *slog.Logger) *SQLSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSink{db: db, logger: logger}
}

func (s *SQLSink) LogRequest(ctx context.Context, entry RequestLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta.request_logs
			(request_id, language_title, status, execution_time_ms, memory_usage_bytes, duration_ms, cached, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.RequestID, entry.LanguageTitle, entry.Status, entry.ExecutionTimeMs, entry.MemoryUsageBytes, entry.DurationMs, entry.Cached, entry.CreatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "telemetry: failed to write request log", "error", err, "request_id", entry.RequestID)
		return nil
	}
	return nil
}

func (s *SQLSink) LogError(ctx context.Context, entry ErrorLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta.error_logs (request_id, kind, message, created_at)
		VALUES ($1, $2, $3, $4)
	`, entry.RequestID, string(entry.Kind), entry.Message, entry.CreatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "telemetry: failed to write error log", "error", err, "request_id", entry.RequestID)
		return nil
	}
	return nil
}

// LogSink logs each entry, JSON-encoded, through a slog.Logger instead of a table,
// for environments without a telemetry schema (e.g. local development).
type LogSink struct {
	mu     sync.Mutex
	logger *slog.Logger
}

// NewLogSink writes via slog.Default() if logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) LogRequest(ctx context.Context, entry RequestLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(entry)
	s.logger.InfoContext(ctx, "request_log", "entry", string(data))
	return nil
}

func (s *LogSink) LogError(ctx context.Context, entry ErrorLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(entry)
	s.logger.InfoContext(ctx, "error_log", "entry", string(data))
	return nil
}

var _ Sink = (*SQLSink)(nil)
var _ Sink = (*LogSink)(nil)
