package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/lambda-microservice/controller/pkg/runtimeselect"
	"github.com/lambda-microservice/controller/pkg/session"
	"github.com/lambda-microservice/controller/pkg/telemetry"
)

// Execute resolves requestID's session, dispatches params to the session's
// worker runtime, records the outcome on the session, and emits telemetry.
// A degraded response, produced when transport retries are exhausted or
// the endpoint's breaker is open, is a successful ExecuteResponse from the
// caller's point of view. Everything else that fails returns an error:
// an unknown session, a selector miss, a compilation or configuration
// failure, a worker error status, a malformed worker response, and a
// session persistence failure.
func (o *Orchestrator) Execute(ctx context.Context, requestID string, params json.RawMessage) (*ExecuteResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	start := time.Now()

	s, cached, err := o.sessions.GetCached(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logError(ctx, requestID, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("language_title", s.LanguageTitle),
		attribute.Bool("session_cached", cached),
	)

	resp, execErr := o.dispatch(ctx, s, params)
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		o.logFailure(ctx, s, cached, time.Since(start), execErr)
		return nil, execErr
	}

	s.RecordExecution()
	if err := o.sessions.Update(ctx, s); err != nil {
		updateErr := lambdaerr.Internal("failed to persist session after execution", err)
		o.logFailure(ctx, s, cached, time.Since(start), updateErr)
		return nil, updateErr
	}

	o.logSuccess(ctx, s, cached, time.Since(start), resp)
	return resp, nil
}

// dispatch resolves the runtime kind, runs the Rust compile step when
// needed, and calls the worker: OpenFaaS first if configured, the direct
// transport path otherwise or on OpenFaaS failure.
func (o *Orchestrator) dispatch(ctx context.Context, s *session.Session, params json.RawMessage) (*ExecuteResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.dispatch")
	defer span.End()

	kind, err := o.selector.Select(s.LanguageTitle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("runtime_kind", string(kind)))

	if kind == runtimeselect.KindRust {
		if err := o.ensureCompiled(ctx, s); err != nil {
			return nil, err
		}
	}

	if o.openfaas != nil {
		resp, err := o.openfaas.Invoke(ctx, FunctionNameForKind(kind), s, params)
		if err == nil {
			return resp, nil
		}
		o.logger.WarnContext(ctx, "openfaas invocation failed, falling back to direct worker", "request_id", s.RequestID, "error", err)
	}

	return o.invokeDirect(ctx, s, kind, params)
}

// ensureCompiled advances a Rust session's compile_status from pending to
// success or error, persisting the result before execution proceeds.
func (o *Orchestrator) ensureCompiled(ctx context.Context, s *session.Session) error {
	if s.CompileStatus == nil {
		return lambdaerr.BadRequest("script_content is required for rust sessions", nil)
	}

	switch *s.CompileStatus {
	case session.CompileSuccess:
		return nil
	case session.CompileError:
		msg := "unknown compilation error"
		if s.CompileError != nil {
			msg = *s.CompileError
		}
		return lambdaerr.Compilation(msg, nil)
	case session.CompilePending:
		if s.ScriptContent == nil {
			return lambdaerr.BadRequest("script_content is required for rust sessions", nil)
		}

		artifact, err := o.compiler.Compile(ctx, *s.ScriptContent)
		if err != nil {
			s.SetCompileError(err.Error())
			if uerr := o.sessions.Update(ctx, s); uerr != nil {
				o.logger.ErrorContext(ctx, "failed to persist compile error", "request_id", s.RequestID, "error", uerr)
			}
			return err
		}

		s.SetCompiledArtifact(artifact)
		if err := o.sessions.Update(ctx, s); err != nil {
			return lambdaerr.Internal("failed to persist compiled artifact", err)
		}
		return nil
	default:
		return lambdaerr.Internal("unknown compile_status", nil)
	}
}

func (o *Orchestrator) invokeDirect(ctx context.Context, s *session.Session, kind runtimeselect.Kind, params json.RawMessage) (*ExecuteResponse, error) {
	ctx, span := o.tracer.Start(ctx, "transport.invoke_direct")
	defer span.End()
	span.SetAttributes(attribute.String("runtime_kind", string(kind)))

	url, err := o.runtimeURL(kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	adapter, err := o.factory.Adapter(o.protocol)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(executeWireRequest{
		RequestID:     s.RequestID,
		Params:        params,
		Context:       s.Context,
		ScriptContent: s.ScriptContent,
	})
	if err != nil {
		return nil, lambdaerr.Internal("marshal execute request", err)
	}

	timeout := o.timeout
	if timeout <= 0 {
		timeout = o.fallbackTimeout
	}

	body, err := o.policy.Do(ctx, url, "execute", timeout, func(attemptCtx context.Context) ([]byte, error) {
		return adapter.Call(attemptCtx, url, payload, timeout)
	})
	if err != nil {
		return nil, err
	}

	var resp ExecuteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, lambdaerr.Runtime("malformed worker response", err)
	}
	return &resp, nil
}

func (o *Orchestrator) logSuccess(ctx context.Context, s *session.Session, cached bool, elapsed time.Duration, resp *ExecuteResponse) {
	executionTime := resp.ExecutionTimeMs
	if err := o.telemetry.LogRequest(ctx, telemetry.RequestLogEntry{
		RequestID:        s.RequestID,
		LanguageTitle:    s.LanguageTitle,
		Status:           "success",
		ExecutionTimeMs:  &executionTime,
		MemoryUsageBytes: resp.MemoryUsageBytes,
		DurationMs:       elapsed.Milliseconds(),
		Cached:           cached,
		CreatedAt:        time.Now().UTC(),
	}); err != nil {
		o.logger.ErrorContext(ctx, "failed to emit request log", "request_id", s.RequestID, "error", err)
	}
}

func (o *Orchestrator) logFailure(ctx context.Context, s *session.Session, cached bool, elapsed time.Duration, err error) {
	if lerr := o.telemetry.LogRequest(ctx, telemetry.RequestLogEntry{
		RequestID:     s.RequestID,
		LanguageTitle: s.LanguageTitle,
		Status:        "error",
		DurationMs:    elapsed.Milliseconds(),
		Cached:        cached,
		CreatedAt:     time.Now().UTC(),
	}); lerr != nil {
		o.logger.ErrorContext(ctx, "failed to emit request log", "request_id", s.RequestID, "error", lerr)
	}
	o.logError(ctx, s.RequestID, err)
}

func (o *Orchestrator) logError(ctx context.Context, requestID string, err error) {
	var lerr *lambdaerr.Error
	kind := lambdaerr.KindInternal
	if errors.As(err, &lerr) {
		kind = lerr.Kind
	}
	if terr := o.telemetry.LogError(ctx, telemetry.ErrorLogEntry{
		RequestID: requestID,
		Kind:      kind,
		Message:   err.Error(),
		CreatedAt: time.Now().UTC(),
	}); terr != nil {
		o.logger.ErrorContext(ctx, "failed to emit error log", "request_id", requestID, "error", terr)
	}
}
