package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/lambda-microservice/controller/pkg/runtimeselect"
	"github.com/lambda-microservice/controller/pkg/session"
)

const maxOpenFaaSErrorBodyBytes = 512

// FunctionNameForKind returns the OpenFaaS function name for a runtime
// kind, e.g. "nodejs" -> "nodejs-runtime".
func FunctionNameForKind(kind runtimeselect.Kind) string {
	return string(kind) + "-runtime"
}

type openfaasRequest struct {
	RequestID     string          `json:"request_id"`
	Params        json.RawMessage `json:"params"`
	Context       json.RawMessage `json:"context"`
	ScriptContent *string         `json:"script_content,omitempty"`
}

type openfaasResponse struct {
	Result           json.RawMessage `json:"result"`
	ExecutionTimeMs  int64           `json:"execution_time_ms"`
	MemoryUsageBytes *int64          `json:"memory_usage_bytes,omitempty"`
}

// OpenFaaSClient calls a worker runtime through an OpenFaaS gateway instead
// of the runtime's URL directly. It is an opportunistic first hop: callers
// fall back to the direct worker path on any error.
type OpenFaaSClient struct {
	client     *http.Client
	gatewayURL string
}

// NewOpenFaaSClient builds a client bound to gatewayURL, with requests
// bounded by timeout. The transport propagates the caller's trace context
// to the gateway and its downstream function, so gateway hops join the
// same trace as the orchestrator spans that triggered them.
func NewOpenFaaSClient(gatewayURL string, timeout time.Duration) *OpenFaaSClient {
	return &OpenFaaSClient{
		client:     &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		gatewayURL: gatewayURL,
	}
}

// Invoke calls functionName via the gateway's synchronous invocation route.
func (c *OpenFaaSClient) Invoke(ctx context.Context, functionName string, s *session.Session, params json.RawMessage) (*ExecuteResponse, error) {
	url := fmt.Sprintf("%s/function/%s/execute", c.gatewayURL, functionName)

	body, err := json.Marshal(openfaasRequest{
		RequestID:     s.RequestID,
		Params:        params,
		Context:       s.Context,
		ScriptContent: s.ScriptContent,
	})
	if err != nil {
		return nil, lambdaerr.Internal("marshal openfaas request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, lambdaerr.Internal("build openfaas request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, lambdaerr.RuntimeTransport("call openfaas gateway", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lambdaerr.RuntimeTransport("read openfaas response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		truncated := respBody
		if len(truncated) > maxOpenFaaSErrorBodyBytes {
			truncated = truncated[:maxOpenFaaSErrorBodyBytes]
		}
		return nil, lambdaerr.Runtime(fmt.Sprintf("openfaas function returned status %d: %s", resp.StatusCode, truncated), nil)
	}

	var parsed openfaasResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, lambdaerr.Runtime("parse openfaas response", err)
	}

	return &ExecuteResponse{
		Result:           parsed.Result,
		ExecutionTimeMs:  parsed.ExecutionTimeMs,
		MemoryUsageBytes: parsed.MemoryUsageBytes,
	}, nil
}
