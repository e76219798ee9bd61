package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeMappingRule is one ordered rule in a RUNTIME_MAPPINGS_FILE: match
// Language-Title against Pattern (literal substring, or a regex when
// IsRegex is true) and resolve to RuntimeKind on a hit.
type RuntimeMappingRule struct {
	Pattern     string `yaml:"pattern"`
	IsRegex     bool   `yaml:"is_regex"`
	RuntimeKind string `yaml:"runtime_kind"`
}

// RuntimeMappings is the parsed contents of a RUNTIME_MAPPINGS_FILE:
// ordered rules evaluated first match wins.
type RuntimeMappings struct {
	Rules []RuntimeMappingRule `yaml:"rules"`
}

// LoadRuntimeMappings reads and parses a RUNTIME_MAPPINGS_FILE.
func LoadRuntimeMappings(path string) (*RuntimeMappings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime mappings %q: %w", path, err)
	}

	var mappings RuntimeMappings
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("parse runtime mappings %q: %w", path, err)
	}

	return &mappings, nil
}
