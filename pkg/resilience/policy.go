package resilience

import (
	"context"
	"time"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// Policy composes per-attempt timeout, retry with jittered backoff, and a
// per-endpoint circuit breaker around a transport call.
type Policy struct {
	Breakers   *BreakerRegistry
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
}

// NewPolicy builds a Policy with spec-default breaker parameters.
func NewPolicy(maxRetries int) *Policy {
	return &Policy{
		Breakers:   NewBreakerRegistry(DefaultFailureThreshold, DefaultResetTimeout),
		MaxRetries: maxRetries,
		Base:       DefaultBaseDelay,
		Cap:        DefaultCapDelay,
	}
}

// Call is a transport invocation bound to an operation name, used so Do
// can attach per-attempt timeouts and degraded-response synthesis.
type Call func(ctx context.Context) ([]byte, error)

// Do executes fn against url under the breaker for that endpoint, with up
// to MaxRetries retries on retryable errors (transport failures, timeouts
// and worker 5xx responses), each attempt bounded
// by timeout. A worker-reported (non-retryable) error is returned as-is
// without being retried or counted against the breaker, since it means
// the endpoint is alive and answering. When the breaker is open, or
// retries are exhausted, a degraded response is returned for operations
// that have one; otherwise the last error is returned.
func (p *Policy) Do(ctx context.Context, url, op string, timeout time.Duration, fn Call) ([]byte, error) {
	breaker := p.Breakers.Get(url)

	if !breaker.Allow() {
		if body, ok := degradedResponse(op); ok {
			return body, nil
		}
		return nil, lambdaerr.RuntimeTransport("circuit breaker open for "+url, nil)
	}

	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := fn(attemptCtx)
		cancel()

		if err == nil {
			breaker.Success()
			return resp, nil
		}

		lastErr = err

		if !lambdaerr.IsRetryable(err) {
			return nil, err
		}

		breaker.Failure()

		if attempt == p.MaxRetries {
			break
		}

		delay := computeBackoff(attempt, p.Base, p.Cap)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if body, ok := degradedResponse(op); ok {
		return body, nil
	}
	return nil, lastErr
}
