package transport

import (
	"fmt"
	"sync"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// ProtocolFactory lazily builds and caches one Adapter per ProtocolKind.
type ProtocolFactory struct {
	mu       sync.Mutex
	adapters map[ProtocolKind]Adapter
}

// NewProtocolFactory builds an empty factory.
func NewProtocolFactory() *ProtocolFactory {
	return &ProtocolFactory{adapters: make(map[ProtocolKind]Adapter)}
}

// Adapter returns the shared Adapter for kind, building it on first use.
func (f *ProtocolFactory) Adapter(kind ProtocolKind) (Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.adapters[kind]; ok {
		return a, nil
	}

	var (
		a   Adapter
		err error
	)

	switch kind {
	case ProtocolJSON:
		a = NewJSONHTTPAdapter()
	case ProtocolRPC:
		a, err = NewRPCAdapter()
	default:
		return nil, lambdaerr.Config(fmt.Sprintf("unknown protocol kind: %s", kind), nil)
	}

	if err != nil {
		return nil, err
	}

	f.adapters[kind] = a
	return a, nil
}
