package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/stretchr/testify/require"
)

func TestSQLSinkLogRequestSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO meta.request_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewSQLSink(db, slog.Default())
	ms := int64(42)
	err = sink.LogRequest(context.Background(), RequestLogEntry{
		RequestID:       "req-1",
		LanguageTitle:   "nodejs-calculator",
		Status:          "success",
		ExecutionTimeMs: &ms,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSinkLogRequestFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO meta.request_logs").WillReturnError(assertErr{})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sink := NewSQLSink(db, logger)
	err = sink.LogRequest(context.Background(), RequestLogEntry{RequestID: "req-2", LanguageTitle: "x", Status: "error"})
	require.NoError(t, err, "telemetry failures must never propagate")
	require.Contains(t, buf.String(), "failed to write request log")
}

func TestSQLSinkLogErrorSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO meta.error_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewSQLSink(db, slog.Default())
	err = sink.LogError(context.Background(), ErrorLogEntry{
		RequestID: "req-3",
		Kind:      lambdaerr.KindRuntime,
		Message:   "worker timed out",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSinkWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewLogSink(logger)

	require.NoError(t, sink.LogRequest(context.Background(), RequestLogEntry{RequestID: "req-4", Status: "success"}))
	require.Contains(t, buf.String(), "request_log")

	buf.Reset()
	require.NoError(t, sink.LogError(context.Background(), ErrorLogEntry{RequestID: "req-4", Kind: lambdaerr.KindStore, Message: "insert failed"}))
	require.Contains(t, buf.String(), "error_log")
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated write failure" }
