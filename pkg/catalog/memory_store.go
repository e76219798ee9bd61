package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// InMemoryStore is a Store implementation for local development and tests,
// mirroring session.InMemoryStore: no durability, same semantics as
// SQLStore otherwise.
type InMemoryStore struct {
	mu        sync.Mutex
	functions map[string]*Function
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{functions: make(map[string]*Function)}
}

func (m *InMemoryStore) Get(ctx context.Context, languageTitle string) (*Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.functions[languageTitle]
	if !ok {
		return nil, lambdaerr.NotFound("function not found", nil)
	}
	clone := *f
	return &clone, nil
}

func (m *InMemoryStore) List(ctx context.Context, language string) ([]*Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Function
	for _, f := range m.functions {
		if language != "" && f.Language != language {
			continue
		}
		clone := *f
		out = append(out, &clone)
	}
	return out, nil
}

func (m *InMemoryStore) Create(ctx context.Context, f *Function) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	clone := *f
	m.functions[f.LanguageTitle] = &clone
	return nil
}

func (m *InMemoryStore) Update(ctx context.Context, f *Function) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.functions[f.LanguageTitle]
	if !ok {
		return lambdaerr.NotFound("function not found", nil)
	}
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = time.Now().UTC()
	clone := *f
	m.functions[f.LanguageTitle] = &clone
	return nil
}

var _ Store = (*InMemoryStore)(nil)
