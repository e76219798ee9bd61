// Package httpapi exposes the controller's REST surface over
// net/http.ServeMux: initialize/execute/session/function routes plus a
// health check.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// errorBody is the wire shape for every error response: a flat
// {"error": "..."} object, not a Problem Detail envelope.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps err to its lambdaerr.Kind's default HTTP status, using
// msgFmt (a single "%s" verb) to format the message for 500s, matching the
// source API's "Failed to <verb>: <reason>" wording; non-500 statuses
// surface err's own message unformatted since it's already client-facing
// (e.g. a selector's "unsupported language title: ...").
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, msgFmt string) {
	var lerr *lambdaerr.Error
	status := http.StatusInternalServerError
	msg := err.Error()
	if errors.As(err, &lerr) {
		status = lerr.Kind.HTTPStatus()
		msg = lerr.Message
	} else {
		logger.Error("unclassified error reached http layer", "error", err)
	}

	if status == http.StatusInternalServerError {
		msg = fmt.Sprintf(msgFmt, msg)
	}
	writeErrorMsg(w, status, msg)
}

// writeSessionLookupError special-cases a not-found session to the wire
// contract's exact wording, since the store's internal message describes
// why internally ("unreachable") rather than what the client should see.
func writeSessionLookupError(w http.ResponseWriter, logger *slog.Logger, err error, msgFmt string) {
	if lambdaerr.KindOf(err) == lambdaerr.KindNotFound {
		writeErrorMsg(w, http.StatusNotFound, "Session not found or expired")
		return
	}
	writeError(w, logger, err, msgFmt)
}
