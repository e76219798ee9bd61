package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

const maxErrorBodyBytes = 512

// JSONHTTPAdapter POSTs the payload as-is to {url}/execute and returns the
// response body verbatim on any 2xx status.
type JSONHTTPAdapter struct {
	client *http.Client
}

// NewJSONHTTPAdapter builds an adapter sharing one http.Client (and its
// connection pool) across every call. The client's transport propagates
// the caller's trace context to the worker, joining the orchestrator's
// invoke_direct span.
func NewJSONHTTPAdapter() *JSONHTTPAdapter {
	return &JSONHTTPAdapter{client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}}
}

func (a *JSONHTTPAdapter) Call(ctx context.Context, url string, payload []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, lambdaerr.Runtime("build worker request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, lambdaerr.RuntimeTransport("worker request timed out", err)
		}
		return nil, lambdaerr.RuntimeTransport("worker request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, lambdaerr.RuntimeTransport("read worker response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		truncated := body
		if len(truncated) > maxErrorBodyBytes {
			truncated = truncated[:maxErrorBodyBytes]
		}
		msg := fmt.Sprintf("worker returned status %d: %s", resp.StatusCode, truncated)
		if resp.StatusCode >= 500 {
			return nil, lambdaerr.RuntimeTransport(msg, nil)
		}
		return nil, lambdaerr.Runtime(msg, nil)
	}

	return body, nil
}

var _ Adapter = (*JSONHTTPAdapter)(nil)
