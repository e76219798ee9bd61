// Package orchestrator ties the session, runtime selection, transport, and
// resilience layers together into the controller's two primary operations:
// initializing a session and executing it against a worker runtime.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lambda-microservice/controller/internal/config"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/lambda-microservice/controller/pkg/resilience"
	"github.com/lambda-microservice/controller/pkg/runtimeselect"
	"github.com/lambda-microservice/controller/pkg/session"
	"github.com/lambda-microservice/controller/pkg/telemetry"
	"github.com/lambda-microservice/controller/pkg/transport"
	"github.com/lambda-microservice/controller/pkg/wasmrun"
)

// ExecuteResponse is the worker's answer to an execute call, shared by the
// direct transport path and the OpenFaaS gateway path.
type ExecuteResponse struct {
	Result           json.RawMessage `json:"result"`
	ExecutionTimeMs  int64           `json:"execution_time_ms"`
	MemoryUsageBytes *int64          `json:"memory_usage_bytes,omitempty"`
}

type executeWireRequest struct {
	RequestID     string          `json:"request_id"`
	Params        json.RawMessage `json:"params"`
	Context       json.RawMessage `json:"context"`
	ScriptContent *string         `json:"script_content,omitempty"`
}

// Orchestrator implements the controller's execute/initialize flow. All
// dependencies are interfaces or narrow structs so tests can substitute
// fakes for every collaborator.
type Orchestrator struct {
	sessions  *session.CachedStore
	selector  runtimeselect.Selector
	factory   *transport.ProtocolFactory
	policy    *resilience.Policy
	compiler  *wasmrun.Compiler
	telemetry telemetry.Sink
	openfaas  *OpenFaaSClient
	tracer    trace.Tracer

	protocol transport.ProtocolKind

	runtimeURLs     map[runtimeselect.Kind]string
	timeout         time.Duration
	fallbackTimeout time.Duration
	maxScriptSize   int

	logger *slog.Logger
}

// New builds an Orchestrator from a loaded Config and its collaborators.
// openfaas may be nil, in which case the gateway pre-check is skipped.
func New(
	cfg *config.Config,
	sessions *session.CachedStore,
	selector runtimeselect.Selector,
	factory *transport.ProtocolFactory,
	policy *resilience.Policy,
	compiler *wasmrun.Compiler,
	sink telemetry.Sink,
	openfaas *OpenFaaSClient,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = otel.Tracer("lambda-controller/orchestrator")
	}

	return &Orchestrator{
		sessions:  sessions,
		selector:  selector,
		factory:   factory,
		policy:    policy,
		compiler:  compiler,
		telemetry: sink,
		openfaas:  openfaas,
		tracer:    tracer,

		// No deployment in the examined fleet selects RPC transport via
		// environment; it is reachable only by wiring ProtocolRPC directly
		// into a binary built with -tags rpc. JSON-over-HTTP is the
		// universal default every worker runtime speaks.
		protocol: transport.ProtocolJSON,

		runtimeURLs: map[runtimeselect.Kind]string{
			runtimeselect.KindNodeJS: cfg.NodeJSRuntimeURL,
			runtimeselect.KindPython: cfg.PythonRuntimeURL,
			runtimeselect.KindRust:   cfg.RustRuntimeURL,
		},
		timeout:         time.Duration(cfg.RuntimeTimeoutSeconds) * time.Second,
		fallbackTimeout: time.Duration(cfg.RuntimeFallbackTimeoutSeconds) * time.Second,
		maxScriptSize:   cfg.MaxScriptSize,

		logger: logger,
	}
}

// Initialize creates a new session. scriptContent larger than the
// configured max is rejected as a bad-request.
func (o *Orchestrator) Initialize(ctx context.Context, languageTitle string, userID *string, reqContext json.RawMessage, scriptContent *string, compileOptions json.RawMessage, expirySeconds int) (*session.Session, error) {
	if scriptContent != nil && len(*scriptContent) > o.maxScriptSize {
		return nil, lambdaerr.BadRequest("script_content exceeds maximum size", nil)
	}

	s := session.New(languageTitle, userID, reqContext, scriptContent, compileOptions, expirySeconds)
	if err := o.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by request_id, reporting not-found via
// lambdaerr.KindNotFound semantics delegated to the underlying store.
func (o *Orchestrator) GetSession(ctx context.Context, requestID string) (*session.Session, error) {
	return o.sessions.Get(ctx, requestID)
}

func (o *Orchestrator) runtimeURL(kind runtimeselect.Kind) (string, error) {
	url, ok := o.runtimeURLs[kind]
	if !ok || url == "" {
		return "", lambdaerr.Config("no runtime URL configured for kind "+string(kind), nil)
	}
	return url, nil
}
