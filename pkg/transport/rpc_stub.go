//go:build !rpc

package transport

import (
	"context"
	"time"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// RPCAdapter is unavailable in this build. Build with -tags rpc to enable
// the gRPC-backed binary transport.
type RPCAdapter struct{}

// NewRPCAdapter always fails in builds without the rpc tag, so the default
// binary never depends on the gRPC client stack.
func NewRPCAdapter() (*RPCAdapter, error) {
	return nil, lambdaerr.Config("rpc adapter requires building with -tags rpc", nil)
}

func (a *RPCAdapter) Call(ctx context.Context, url string, payload []byte, timeout time.Duration) ([]byte, error) {
	return nil, lambdaerr.Config("rpc adapter is not built into this binary", nil)
}

var _ Adapter = (*RPCAdapter)(nil)
