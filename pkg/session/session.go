// Package session implements the session lifecycle: creation, lookup,
// post-execution update, expiry, and periodic cleanup, over a durable
// meta.sessions table.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// CompileStatus tracks the pending -> {success, error} DAG for a session
// with an associated script awaiting compilation.
type CompileStatus string

const (
	CompilePending CompileStatus = "pending"
	CompileSuccess CompileStatus = "success"
	CompileError   CompileStatus = "error"
)

// Session is the controller's primary entity: the unit of script ownership
// across initialize/execute interactions.
type Session struct {
	RequestID       string
	LanguageTitle   string
	UserID          *string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	LastExecutedAt  *time.Time
	ExecutionCount  int
	Status          Status
	Context         json.RawMessage
	ScriptContent   *string
	ScriptHash      *string
	CompiledArtifact []byte
	CompileOptions  json.RawMessage
	CompileStatus   *CompileStatus
	CompileError    *string
	Metadata        json.RawMessage
}

// New constructs a session ready for persistence: request_id assigned,
// created_at/expires_at stamped, script_hash derived from script_content.
func New(languageTitle string, userID *string, context json.RawMessage, scriptContent *string, compileOptions json.RawMessage, expirySeconds int) *Session {
	now := time.Now().UTC()

	if context == nil {
		context = json.RawMessage("{}")
	}

	s := &Session{
		RequestID:      uuid.NewString(),
		LanguageTitle:  languageTitle,
		UserID:         userID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(expirySeconds) * time.Second),
		ExecutionCount: 0,
		Status:         StatusActive,
		Context:        context,
		ScriptContent:  scriptContent,
		CompileOptions: compileOptions,
	}

	if scriptContent != nil {
		hash := ScriptHash(*scriptContent)
		s.ScriptHash = &hash
		pending := CompilePending
		s.CompileStatus = &pending
	}

	return s
}

// ScriptHash computes the hex-encoded SHA-256 digest of content, matching
// the invariant enforced server-side by the sessions_script_hash trigger.
func ScriptHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// IsExpired reports whether the session's expires_at has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsReachable reports the spec's reachability invariant: expires_at > now
// and status == active.
func (s *Session) IsReachable() bool {
	return s.Status == StatusActive && time.Now().Before(s.ExpiresAt)
}

// RecordExecution advances last_executed_at and execution_count after a
// successful execute. Last-writer-wins under concurrent execute, per the
// spec's resolved open question: no additional locking is introduced.
func (s *Session) RecordExecution() {
	now := time.Now().UTC()
	s.LastExecutedAt = &now
	s.ExecutionCount++
}

// SetCompiledArtifact records a successful ahead-of-time compile.
func (s *Session) SetCompiledArtifact(artifact []byte) {
	s.CompiledArtifact = artifact
	success := CompileSuccess
	s.CompileStatus = &success
	s.CompileError = nil
}

// SetCompileError records a failed ahead-of-time compile.
func (s *Session) SetCompileError(msg string) {
	s.CompileError = &msg
	failed := CompileError
	s.CompileStatus = &failed
}
