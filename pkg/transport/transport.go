// Package transport adapts the resilience layer to a wire protocol for
// calling a worker runtime: JSON-over-HTTP always, binary RPC optionally.
package transport

import (
	"context"
	"time"
)

// Adapter sends a payload to a worker and returns its raw response bytes.
// Implementations must be safe for concurrent use.
type Adapter interface {
	Call(ctx context.Context, url string, payload []byte, timeout time.Duration) ([]byte, error)
}

// ProtocolKind selects which Adapter a ProtocolFactory builds.
type ProtocolKind string

const (
	ProtocolJSON ProtocolKind = "json"
	ProtocolRPC  ProtocolKind = "rpc"
)
