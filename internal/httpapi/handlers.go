package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lambda-microservice/controller/pkg/catalog"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/lambda-microservice/controller/pkg/session"
)

const maxInitializeBodyBytes = 10 << 20 // 10MB, generous over max_script_size

type initializeRequestBody struct {
	Context        json.RawMessage `json:"context"`
	ScriptContent  *string         `json:"script_content,omitempty"`
	CompileOptions json.RawMessage `json:"compile_options,omitempty"`
}

type initializeResponseBody struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

// handleInitialize implements POST /api/v1/initialize.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	languageTitle := r.Header.Get("Language-Title")
	if languageTitle == "" {
		writeErrorMsg(w, http.StatusBadRequest, "Missing Language-Title header")
		return
	}

	var userID *string
	if v := r.Header.Get("X-User-ID"); v != "" {
		userID = &v
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxInitializeBodyBytes)
	var body initializeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := s.orc.Initialize(r.Context(), languageTitle, userID, body.Context, body.ScriptContent, body.CompileOptions, s.sessionExpirySeconds)
	if err != nil {
		writeError(w, s.logger, err, "Failed to create session: %s")
		return
	}

	writeJSON(w, http.StatusOK, initializeResponseBody{
		RequestID: sess.RequestID,
		Status:    "initialized",
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
	})
}

type executeRequestBody struct {
	Params json.RawMessage `json:"params"`
}

type executeResponseBody struct {
	Result           json.RawMessage `json:"result"`
	RequestID        string          `json:"request_id"`
	ExecutionTimeMs  int64           `json:"execution_time_ms"`
	MemoryUsageBytes *int64          `json:"memory_usage_bytes,omitempty"`
}

// handleExecute implements POST /api/v1/execute/{request_id}.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := strings.TrimPrefix(r.URL.Path, "/api/v1/execute/")
	if requestID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "request_id is required")
		return
	}

	var body executeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.orc.Execute(r.Context(), requestID, body.Params)
	if err != nil {
		writeSessionLookupError(w, s.logger, err, "Failed to execute function: %s")
		return
	}

	writeJSON(w, http.StatusOK, executeResponseBody{
		Result:           resp.Result,
		RequestID:        requestID,
		ExecutionTimeMs:  resp.ExecutionTimeMs,
		MemoryUsageBytes: resp.MemoryUsageBytes,
	})
}

type sessionStateResponse struct {
	RequestID      string  `json:"request_id"`
	LanguageTitle  string  `json:"language_title"`
	CreatedAt      string  `json:"created_at"`
	ExpiresAt      string  `json:"expires_at"`
	LastExecutedAt *string `json:"last_executed_at,omitempty"`
	ExecutionCount int     `json:"execution_count"`
	Status         string  `json:"status"`
	CompileStatus  *string `json:"compile_status,omitempty"`
}

// handleGetSession implements GET /api/v1/sessions/{request_id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if requestID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "request_id is required")
		return
	}

	sess, err := s.orc.GetSession(r.Context(), requestID)
	if err != nil {
		writeSessionLookupError(w, s.logger, err, "Failed to get session: %s")
		return
	}

	writeJSON(w, http.StatusOK, sessionProjection(sess))
}

func sessionProjection(sess *session.Session) sessionStateResponse {
	resp := sessionStateResponse{
		RequestID:      sess.RequestID,
		LanguageTitle:  sess.LanguageTitle,
		CreatedAt:      sess.CreatedAt.Format(time.RFC3339),
		ExpiresAt:      sess.ExpiresAt.Format(time.RFC3339),
		ExecutionCount: sess.ExecutionCount,
		Status:         string(sess.Status),
	}
	if sess.LastExecutedAt != nil {
		formatted := sess.LastExecutedAt.Format(time.RFC3339)
		resp.LastExecutedAt = &formatted
	}
	if sess.CompileStatus != nil {
		cs := string(*sess.CompileStatus)
		resp.CompileStatus = &cs
	}
	return resp
}

type functionInfo struct {
	LanguageTitle string  `json:"language_title"`
	Description   *string `json:"description,omitempty"`
	CreatedAt     string  `json:"created_at"`
	LastUpdatedAt string  `json:"last_updated_at"`
}

type functionListResponse struct {
	Functions []functionInfo `json:"functions"`
}

// handleListFunctions implements GET /api/v1/functions?language=<name>.
func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.catalog == nil {
		writeJSON(w, http.StatusOK, functionListResponse{Functions: []functionInfo{}})
		return
	}

	functions, err := s.catalog.List(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		writeError(w, s.logger, err, "Failed to get functions: %s")
		return
	}

	infos := make([]functionInfo, 0, len(functions))
	for _, f := range functions {
		infos = append(infos, functionInfo{
			LanguageTitle: f.LanguageTitle,
			Description:   f.Description,
			CreatedAt:     f.CreatedAt.Format(time.RFC3339),
			LastUpdatedAt: f.UpdatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, functionListResponse{Functions: infos})
}

// handleGetFunction implements GET /api/v1/functions/{language_title}.
func (s *Server) handleGetFunction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	languageTitle := strings.TrimPrefix(r.URL.Path, "/api/v1/functions/")
	if languageTitle == "" {
		writeErrorMsg(w, http.StatusBadRequest, "language_title is required")
		return
	}

	if s.catalog == nil {
		writeErrorMsg(w, http.StatusNotFound, "function with language_title '"+languageTitle+"' not found")
		return
	}

	f, err := s.catalog.Get(r.Context(), languageTitle)
	if err != nil {
		if lambdaerr.KindOf(err) == lambdaerr.KindNotFound {
			writeErrorMsg(w, http.StatusNotFound, "function with language_title '"+languageTitle+"' not found")
			return
		}
		writeError(w, s.logger, err, "Failed to get function: %s")
		return
	}

	writeJSON(w, http.StatusOK, catalogFunctionBody(f))
}

func catalogFunctionBody(f *catalog.Function) map[string]any {
	return map[string]any{
		"language":       f.Language,
		"title":          f.Title,
		"language_title": f.LanguageTitle,
		"description":    f.Description,
		"created_at":     f.CreatedAt.Format(time.RFC3339),
		"updated_at":     f.UpdatedAt.Format(time.RFC3339),
		"script_content": f.ScriptContent,
		"is_active":      f.IsActive,
		"version":        f.Version,
	}
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
