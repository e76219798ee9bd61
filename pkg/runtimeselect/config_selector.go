package runtimeselect

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lambda-microservice/controller/internal/config"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

type compiledRule struct {
	pattern     string
	isRegex     bool
	regex       *regexp.Regexp
	runtimeKind Kind
}

// ConfigSelector evaluates an ordered rule list loaded from a
// RUNTIME_MAPPINGS_FILE; the first matching rule wins. An empty rule list
// (or one left empty after invalid rules are skipped) falls back to
// prefix matching.
type ConfigSelector struct {
	rules    []compiledRule
	fallback PrefixSelector
	logger   *slog.Logger
}

// NewConfigSelector compiles mappings into a ready-to-use selector. A rule
// with IsRegex=true whose Pattern fails to compile is logged and skipped
// rather than aborting construction, matching the original's warn!-and-
// continue behavior for a bad mappings file.
func NewConfigSelector(mappings *config.RuntimeMappings, logger *slog.Logger) *ConfigSelector {
	if logger == nil {
		logger = slog.Default()
	}

	rules := make([]compiledRule, 0, len(mappings.Rules))
	for _, r := range mappings.Rules {
		cr := compiledRule{pattern: r.Pattern, isRegex: r.IsRegex, runtimeKind: Kind(r.RuntimeKind)}
		if r.IsRegex {
			re, err := regexp.Compile(anchorFullMatch(r.Pattern))
			if err != nil {
				logger.Warn("invalid regex pattern, skipping rule", "pattern", r.Pattern, "error", err)
				continue
			}
			cr.regex = re
		}
		rules = append(rules, cr)
	}

	return &ConfigSelector{rules: rules, logger: logger}
}

// anchorFullMatch wraps pattern so MatchString tests the whole string
// rather than a substring: regex rules match the full language_title,
// unlike the literal branch below, which tests containment.
func anchorFullMatch(pattern string) string {
	return "^(?:" + pattern + ")$"
}

func (s *ConfigSelector) Select(languageTitle string) (Kind, error) {
	if len(s.rules) == 0 {
		s.logger.Warn("configuration-based mapping selected but no usable mappings defined, falling back to prefix matching")
		return s.fallback.Select(languageTitle)
	}

	title := normalize(languageTitle)

	for _, rule := range s.rules {
		var matched bool
		if rule.isRegex {
			matched = rule.regex.MatchString(title)
		} else {
			matched = strings.Contains(title, rule.pattern)
		}
		if matched {
			return rule.runtimeKind, nil
		}
	}

	return "", lambdaerr.BadRequest(fmt.Sprintf("no configured mapping for language title: %s", languageTitle), nil)
}

var _ Selector = (*ConfigSelector)(nil)
