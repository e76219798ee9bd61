package httpapi

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lambda-microservice/controller/pkg/catalog"
	"github.com/lambda-microservice/controller/pkg/orchestrator"
)

// Server holds the collaborators every handler needs.
type Server struct {
	orc                  *orchestrator.Orchestrator
	catalog              catalog.Store
	logger               *slog.Logger
	sessionExpirySeconds int
}

// New builds a Server. catalog may be nil: the function-listing routes
// then report an empty catalog instead of failing, since the catalog is
// advisory and execution never depends on it.
func New(orc *orchestrator.Orchestrator, catalogStore catalog.Store, sessionExpirySeconds int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orc:                  orc,
		catalog:              catalogStore,
		logger:               logger,
		sessionExpirySeconds: sessionExpirySeconds,
	}
}

// Handler builds the full middleware-wrapped mux. otelhttp wraps the
// outermost layer so every handler, including the orchestrator and
// transport spans it triggers downstream, joins one request-scoped trace.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/initialize", s.handleInitialize)
	mux.HandleFunc("/api/v1/execute/", s.handleExecute)
	mux.HandleFunc("/api/v1/sessions/", s.handleGetSession)
	mux.HandleFunc("/api/v1/functions", s.handleListFunctions)
	mux.HandleFunc("/api/v1/functions/", s.handleGetFunction)
	mux.HandleFunc("/health", s.handleHealth)

	wrapped := chain(mux, recoverMiddleware(s.logger), loggingMiddleware(s.logger), requestIDMiddleware)
	return otelhttp.NewHandler(wrapped, "controller.http")
}
