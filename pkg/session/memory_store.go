package session

import (
	"context"
	"sync"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// InMemoryStore is a Store implementation for tests and the orchestrator's
// unit tests; it has no durability but honours the same reachability and
// idempotence semantics as SQLStore.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

func (m *InMemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.sessions[s.RequestID] = &clone
	return nil
}

func (m *InMemoryStore) Get(ctx context.Context, requestID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[requestID]
	if !ok || !s.IsReachable() {
		return nil, lambdaerr.NotFound("session not found or unreachable", nil)
	}
	clone := *s
	return &clone, nil
}

func (m *InMemoryStore) Update(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[s.RequestID]
	if !ok {
		return lambdaerr.NotFound("session not found", nil)
	}

	existing.LastExecutedAt = s.LastExecutedAt
	existing.ExecutionCount = s.ExecutionCount
	existing.Status = s.Status
	existing.CompiledArtifact = s.CompiledArtifact
	existing.CompileStatus = s.CompileStatus
	existing.CompileError = s.CompileError
	existing.Metadata = s.Metadata
	return nil
}

func (m *InMemoryStore) Expire(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[requestID]; ok {
		s.Status = StatusExpired
	}
	return nil
}

func (m *InMemoryStore) CleanupExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*InMemoryStore)(nil)
