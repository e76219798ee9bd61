// Package config loads the controller's configuration from environment
// variables. There is no configuration framework: every setting is read
// with os.Getenv and a default, matching how the rest of the stack loads
// its own environment.
package config

import (
	"os"
	"strconv"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// SelectionStrategy names the runtime selector strategy in use.
type SelectionStrategy string

const (
	StrategyPrefix    SelectionStrategy = "prefix"
	StrategyConfig    SelectionStrategy = "config"
	StrategyDiscovery SelectionStrategy = "discovery"
)

// Config holds every environment-driven setting the controller needs.
type Config struct {
	Host string
	Port string

	DatabaseURL string
	RedisURL    string

	SessionExpirySeconds int

	NodeJSRuntimeURL string
	PythonRuntimeURL string
	RustRuntimeURL   string

	RuntimeTimeoutSeconds         int
	RuntimeFallbackTimeoutSeconds int
	RuntimeMaxRetries             int

	MaxScriptSize int

	OpenFaaSGatewayURL string

	SelectionStrategy   SelectionStrategy
	RuntimeMappingsFile string
	KubernetesNamespace string

	CacheTTLSeconds int
}

// Load reads the process environment into a Config. DATABASE_URL and
// REDIS_URL are required; a missing value is a config-kind error that
// should abort startup.
func Load() (*Config, error) {
	cfg := &Config{
		Host:                          getString("HOST", "0.0.0.0"),
		Port:                          getString("PORT", "8080"),
		DatabaseURL:                   os.Getenv("DATABASE_URL"),
		RedisURL:                      os.Getenv("REDIS_URL"),
		SessionExpirySeconds:          getInt("SESSION_EXPIRY_SECONDS", 3600),
		NodeJSRuntimeURL:              os.Getenv("NODEJS_RUNTIME_URL"),
		PythonRuntimeURL:              os.Getenv("PYTHON_RUNTIME_URL"),
		RustRuntimeURL:                os.Getenv("RUST_RUNTIME_URL"),
		RuntimeTimeoutSeconds:         getInt("RUNTIME_TIMEOUT_SECONDS", 30),
		RuntimeFallbackTimeoutSeconds: getInt("RUNTIME_FALLBACK_TIMEOUT_SECONDS", 15),
		RuntimeMaxRetries:             getInt("RUNTIME_MAX_RETRIES", 3),
		MaxScriptSize:                 getInt("MAX_SCRIPT_SIZE", 1048576),
		OpenFaaSGatewayURL:            os.Getenv("OPENFAAS_GATEWAY_URL"),
		SelectionStrategy:             SelectionStrategy(getString("SELECTION_STRATEGY", string(StrategyPrefix))),
		RuntimeMappingsFile:           os.Getenv("RUNTIME_MAPPINGS_FILE"),
		KubernetesNamespace:           os.Getenv("KUBERNETES_NAMESPACE"),
		CacheTTLSeconds:               getInt("CACHE_TTL_SECONDS", 3600),
	}

	if cfg.DatabaseURL == "" {
		return nil, lambdaerr.Config("DATABASE_URL is required", nil)
	}
	if cfg.RedisURL == "" {
		return nil, lambdaerr.Config("REDIS_URL is required", nil)
	}

	switch cfg.SelectionStrategy {
	case StrategyPrefix, StrategyConfig, StrategyDiscovery:
	default:
		return nil, lambdaerr.Config("SELECTION_STRATEGY must be one of prefix, config, discovery", nil)
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
