package resilience

import (
	"encoding/json"
	"time"
)

// degradedResponse synthesizes a typed fallback for operations that have
// one. Operations without a degraded form return ok=false so the caller
// surfaces the real error instead.
func degradedResponse(op string) ([]byte, bool) {
	switch op {
	case "execute":
		body, _ := json.Marshal(map[string]any{
			"result":            "Degraded operation: unable to execute normally",
			"execution_time_ms": 0,
			"degraded":          true,
		})
		return body, true
	case "health_check":
		body, _ := json.Marshal(map[string]any{
			"status":    "degraded",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return body, true
	default:
		return nil, false
	}
}
