//go:build rpc

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

const rawCodecName = "lambda-raw"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// rawCodec passes already-JSON-encoded envelopes through grpc's wire
// framing unchanged, so the six RuntimeService operations below don't
// need a protoc-generated message type per operation.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return json.Marshal(v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	if p, ok := v.(*[]byte); ok {
		*p = append([]byte(nil), data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

func (rawCodec) Name() string { return rawCodecName }

var rpcMethods = map[string]string{
	"execute":      "/runtime.RuntimeService/Execute",
	"initialize":   "/runtime.RuntimeService/Initialize",
	"health_check": "/runtime.RuntimeService/HealthCheck",
	"metrics":      "/runtime.RuntimeService/GetMetrics",
	"logs":         "/runtime.RuntimeService/GetLogs",
	"config":       "/runtime.RuntimeService/UpdateConfig",
}

var rpcDefaultTimeouts = map[string]time.Duration{
	"execute":      30 * time.Second,
	"initialize":   60 * time.Second,
	"health_check": 5 * time.Second,
	"metrics":      10 * time.Second,
	"logs":         15 * time.Second,
	"config":       10 * time.Second,
}

const rpcConnectTimeout = 5 * time.Second

// RPCAdapter dispatches one of six unary RuntimeService operations over a
// long-lived gRPC connection pool keyed by URL. The operation to invoke is
// read from a "request_type" field in the JSON payload envelope, matching
// the dispatch table the Rust worker protocol used.
type RPCAdapter struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewRPCAdapter builds an adapter with an empty connection pool.
func NewRPCAdapter() (*RPCAdapter, error) {
	return &RPCAdapter{conns: make(map[string]*grpc.ClientConn)}, nil
}

func (a *RPCAdapter) getConn(url string) (*grpc.ClientConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if conn, ok := a.conns[url]; ok {
		return conn, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcConnectTimeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, url,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, lambdaerr.RuntimeTransport("failed to connect to gRPC endpoint", err)
	}

	a.conns[url] = conn
	return conn, nil
}

// OperationTimeout returns the default timeout for a named RuntimeService
// operation, or 10s for an operation this adapter doesn't recognize.
func (a *RPCAdapter) OperationTimeout(operation string) time.Duration {
	if d, ok := rpcDefaultTimeouts[operation]; ok {
		return d
	}
	return 10 * time.Second
}

func (a *RPCAdapter) Call(ctx context.Context, url string, payload []byte, timeout time.Duration) ([]byte, error) {
	var envelope struct {
		RequestType string `json:"request_type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, lambdaerr.Runtime("invalid JSON in RPC payload", err)
	}
	if envelope.RequestType == "" {
		envelope.RequestType = "execute"
	}

	method, ok := rpcMethods[envelope.RequestType]
	if !ok {
		return nil, lambdaerr.Runtime(fmt.Sprintf("unknown RPC request type: %s", envelope.RequestType), nil)
	}

	conn, err := a.getConn(url)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reply []byte
	if err := conn.Invoke(callCtx, method, payload, &reply, grpc.CallContentSubtype(rawCodecName)); err != nil {
		if callCtx.Err() != nil {
			return nil, lambdaerr.RuntimeTransport(fmt.Sprintf("gRPC %s request timed out", envelope.RequestType), err)
		}
		return nil, lambdaerr.RuntimeTransport(fmt.Sprintf("gRPC %s request failed", envelope.RequestType), err)
	}

	return reply, nil
}

var _ Adapter = (*RPCAdapter)(nil)
