package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-microservice/controller/internal/config"
	"github.com/lambda-microservice/controller/pkg/cache"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/lambda-microservice/controller/pkg/resilience"
	"github.com/lambda-microservice/controller/pkg/runtimeselect"
	"github.com/lambda-microservice/controller/pkg/session"
	"github.com/lambda-microservice/controller/pkg/telemetry"
	"github.com/lambda-microservice/controller/pkg/transport"
	"github.com/lambda-microservice/controller/pkg/wasmrun"
)

// recordingSink is a telemetry.Sink that keeps every entry it's given, for
// assertions, instead of writing anywhere.
type recordingSink struct {
	mu       sync.Mutex
	requests []telemetry.RequestLogEntry
	errors   []telemetry.ErrorLogEntry
}

func (s *recordingSink) LogRequest(ctx context.Context, entry telemetry.RequestLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, entry)
	return nil
}

func (s *recordingSink) LogError(ctx context.Context, entry telemetry.ErrorLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, entry)
	return nil
}

var _ telemetry.Sink = (*recordingSink)(nil)

func testConfig(workerURL string) *config.Config {
	return &config.Config{
		NodeJSRuntimeURL:              workerURL,
		PythonRuntimeURL:              workerURL,
		RustRuntimeURL:                workerURL,
		RuntimeTimeoutSeconds:         2,
		RuntimeFallbackTimeoutSeconds: 2,
		RuntimeMaxRetries:             2,
		MaxScriptSize:                 1024,
	}
}

func newTestOrchestrator(t *testing.T, workerURL string, sink *recordingSink) (*Orchestrator, *session.CachedStore) {
	t.Helper()

	store := session.NewInMemoryStore()
	cached := session.NewCachedStore(store, cache.NewInMemoryCache(), 60, nil)

	orc := New(
		testConfig(workerURL),
		cached,
		runtimeselect.PrefixSelector{},
		transport.NewProtocolFactory(),
		resilience.NewPolicy(2),
		wasmrun.NewCompiler(context.Background()),
		sink,
		nil,
		nil,
		nil,
	)
	return orc, cached
}

func TestOrchestratorExecuteSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"ok":true},"execution_time_ms":12,"memory_usage_bytes":2048}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	orc, cached := newTestOrchestrator(t, srv.URL, sink)

	s, err := orc.Initialize(context.Background(), "nodejs-20-hello", nil, json.RawMessage(`{}`), nil, nil, 3600)
	require.NoError(t, err)

	resp, err := orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), resp.ExecutionTimeMs)
	require.NotNil(t, resp.MemoryUsageBytes)
	assert.Equal(t, int64(2048), *resp.MemoryUsageBytes)

	updated, err := cached.Get(context.Background(), s.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ExecutionCount)
	assert.NotNil(t, updated.LastExecutedAt)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.requests, 1)
	assert.Equal(t, "success", sink.requests[0].Status)
	assert.GreaterOrEqual(t, sink.requests[0].DurationMs, int64(0))
}

func TestOrchestratorExecuteReportsCacheHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"ok":true},"execution_time_ms":1}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	orc, _ := newTestOrchestrator(t, srv.URL, sink)

	s, err := orc.Initialize(context.Background(), "nodejs-20-hello", nil, json.RawMessage(`{}`), nil, nil, 3600)
	require.NoError(t, err)

	// First execute: session comes from the cache mirror that Initialize's
	// CachedStore.Create wrote.
	_, err = orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.NoError(t, err)

	// Second execute: the mirror was refreshed by the first execute's Update.
	_, err = orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.requests, 2)
	assert.True(t, sink.requests[0].Cached)
	assert.True(t, sink.requests[1].Cached)
}

func TestOrchestratorExecuteUnknownSession(t *testing.T) {
	sink := &recordingSink{}
	orc, _ := newTestOrchestrator(t, "http://unused", sink)

	_, err := orc.Execute(context.Background(), "nonexistent-id", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, lambdaerr.KindNotFound, lambdaerr.KindOf(err))
}

func TestOrchestratorExecuteWorkerBadRequestNotRetried(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad params"}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	orc, _ := newTestOrchestrator(t, srv.URL, sink)

	s, err := orc.Initialize(context.Background(), "python-3.11-hello", nil, json.RawMessage(`{}`), nil, nil, 3600)
	require.NoError(t, err)

	_, err = orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, lambdaerr.KindRuntime, lambdaerr.KindOf(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestOrchestratorExecuteRustCompilesThenExecutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"ok","execution_time_ms":5}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	orc, cached := newTestOrchestrator(t, srv.URL, sink)

	script := "AGFzbQEAAAA="
	s, err := orc.Initialize(context.Background(), "rust-1.75-hello", nil, json.RawMessage(`{}`), &script, nil, 3600)
	require.NoError(t, err)
	require.NotNil(t, s.CompileStatus)
	assert.Equal(t, session.CompilePending, *s.CompileStatus)

	resp, err := orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.ExecutionTimeMs)

	updated, err := cached.Get(context.Background(), s.RequestID)
	require.NoError(t, err)
	require.NotNil(t, updated.CompileStatus)
	assert.Equal(t, session.CompileSuccess, *updated.CompileStatus)
	assert.NotEmpty(t, updated.CompiledArtifact)
}

func TestOrchestratorExecuteRustCompileErrorShortCircuits(t *testing.T) {
	sink := &recordingSink{}
	orc, cached := newTestOrchestrator(t, "http://unused", sink)

	script := "not valid base64 !!!"
	s, err := orc.Initialize(context.Background(), "rust-1.75-hello", nil, json.RawMessage(`{}`), &script, nil, 3600)
	require.NoError(t, err)

	_, err = orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, lambdaerr.KindCompilation, lambdaerr.KindOf(err))

	updated, err := cached.Get(context.Background(), s.RequestID)
	require.NoError(t, err)
	require.NotNil(t, updated.CompileStatus)
	assert.Equal(t, session.CompileError, *updated.CompileStatus)
}

func TestOrchestratorExecuteMissingRuntimeURL(t *testing.T) {
	sink := &recordingSink{}
	store := session.NewInMemoryStore()
	cached := session.NewCachedStore(store, cache.NewInMemoryCache(), 60, nil)

	cfg := testConfig("http://worker")
	cfg.RustRuntimeURL = ""

	orc := New(
		cfg,
		cached,
		runtimeselect.PrefixSelector{},
		transport.NewProtocolFactory(),
		resilience.NewPolicy(2),
		wasmrun.NewCompiler(context.Background()),
		sink,
		nil,
		nil,
		nil,
	)

	script := "AGFzbQEAAAA="
	s, err := orc.Initialize(context.Background(), "rust-1.75-hello", nil, json.RawMessage(`{}`), &script, nil, 3600)
	require.NoError(t, err)

	_, err = orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, lambdaerr.KindConfig, lambdaerr.KindOf(err))
}

func TestOrchestratorExecuteDegradesWhenWorkerUnreachable(t *testing.T) {
	sink := &recordingSink{}
	orc, cached := newTestOrchestrator(t, "http://127.0.0.1:1", sink)

	s, err := orc.Initialize(context.Background(), "nodejs-20-hello", nil, json.RawMessage(`{}`), nil, nil, 3600)
	require.NoError(t, err)

	resp, err := orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, resp.ExecutionTimeMs == 0)

	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Contains(t, result, "Degraded operation")

	updated, err := cached.Get(context.Background(), s.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ExecutionCount)
}

func TestOrchestratorExecuteUsesOpenFaaSWhenConfigured(t *testing.T) {
	var gatewayHit, directHit bool
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayHit = true
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"from-gateway","execution_time_ms":1}`))
	}))
	defer gateway.Close()

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		directHit = true
		w.Write([]byte(`{"result":"from-direct","execution_time_ms":1}`))
	}))
	defer direct.Close()

	sink := &recordingSink{}
	store := session.NewInMemoryStore()
	cached := session.NewCachedStore(store, cache.NewInMemoryCache(), 60, nil)

	orc := New(
		testConfig(direct.URL),
		cached,
		runtimeselect.PrefixSelector{},
		transport.NewProtocolFactory(),
		resilience.NewPolicy(2),
		wasmrun.NewCompiler(context.Background()),
		sink,
		NewOpenFaaSClient(gateway.URL, 2*time.Second),
		nil,
		nil,
	)

	s, err := orc.Initialize(context.Background(), "nodejs-20-hello", nil, json.RawMessage(`{}`), nil, nil, 3600)
	require.NoError(t, err)

	resp, err := orc.Execute(context.Background(), s.RequestID, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"from-gateway"`, string(resp.Result))
	assert.True(t, gatewayHit)
	assert.False(t, directHit)
}
