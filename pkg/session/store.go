package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// Store is the persistence contract the orchestrator depends on.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, requestID string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Expire(ctx context.Context, requestID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// SQLStore implements Store over meta.sessions via database/sql.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open *sql.DB. The schema must already be migrated.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (st *SQLStore) Create(ctx context.Context, s *Session) error {
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO meta.sessions (
			request_id, language_title, user_id, created_at, expires_at,
			status, context, script_content, compile_options
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		s.RequestID, s.LanguageTitle, s.UserID, s.CreatedAt, s.ExpiresAt,
		string(s.Status), s.Context, s.ScriptContent, nullableJSON(s.CompileOptions),
	)
	if err != nil {
		return lambdaerr.Store("create session", err)
	}
	return nil
}

// Get returns the session if it is reachable (expires_at > now). An
// unreachable or missing session is reported as lambdaerr.KindNotFound.
func (st *SQLStore) Get(ctx context.Context, requestID string) (*Session, error) {
	row := st.db.QueryRowContext(ctx, `
		SELECT
			request_id, language_title, user_id, created_at, expires_at,
			last_executed_at, execution_count, status, context,
			script_content, script_hash, compiled_artifact, compile_options,
			compile_status, compile_error, metadata
		FROM meta.sessions
		WHERE request_id = $1 AND expires_at > NOW() AND status = 'active'
	`, requestID)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lambdaerr.NotFound("session not found or unreachable", nil)
	}
	if err != nil {
		return nil, lambdaerr.Store("get session", err)
	}
	return s, nil
}

func (st *SQLStore) Update(ctx context.Context, s *Session) error {
	_, err := st.db.ExecContext(ctx, `
		UPDATE meta.sessions
		SET
			last_executed_at = $1,
			execution_count = $2,
			status = $3,
			compiled_artifact = $4,
			compile_status = $5,
			compile_error = $6,
			metadata = $7
		WHERE request_id = $8
	`,
		s.LastExecutedAt, s.ExecutionCount, string(s.Status), s.CompiledArtifact,
		compileStatusStr(s.CompileStatus), s.CompileError, nullableJSON(s.Metadata), s.RequestID,
	)
	if err != nil {
		return lambdaerr.Store("update session", err)
	}
	return nil
}

// Expire marks a session expired. Idempotent: calling it twice is
// equivalent to calling it once.
func (st *SQLStore) Expire(ctx context.Context, requestID string) error {
	_, err := st.db.ExecContext(ctx, `
		UPDATE meta.sessions SET status = 'expired' WHERE request_id = $1
	`, requestID)
	if err != nil {
		return lambdaerr.Store("expire session", err)
	}
	return nil
}

// CleanupExpired marks rows past expiry as expired then deletes them,
// returning the number of rows removed. Delegates to the server-side
// meta.cleanup_expired_sessions() function.
func (st *SQLStore) CleanupExpired(ctx context.Context) (int64, error) {
	var count int64
	err := st.db.QueryRowContext(ctx, `SELECT meta.cleanup_expired_sessions()`).Scan(&count)
	if err != nil {
		return 0, lambdaerr.Store("cleanup expired sessions", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var statusStr string
	var compileStatusVal sql.NullString

	err := row.Scan(
		&s.RequestID, &s.LanguageTitle, &s.UserID, &s.CreatedAt, &s.ExpiresAt,
		&s.LastExecutedAt, &s.ExecutionCount, &statusStr, &s.Context,
		&s.ScriptContent, &s.ScriptHash, &s.CompiledArtifact, &s.CompileOptions,
		&compileStatusVal, &s.CompileError, &s.Metadata,
	)
	if err != nil {
		return nil, err
	}

	s.Status = Status(statusStr)
	if compileStatusVal.Valid {
		cs := CompileStatus(compileStatusVal.String)
		s.CompileStatus = &cs
	}

	return &s, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func compileStatusStr(cs *CompileStatus) any {
	if cs == nil {
		return nil
	}
	return string(*cs)
}

var _ Store = (*SQLStore)(nil)
