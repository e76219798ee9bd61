package runtimeselect

import (
	"fmt"
	"strings"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// PrefixSelector is the default strategy: language_title must begin with
// "nodejs-", "python-", or "rust-".
type PrefixSelector struct{}

// NewPrefixSelector returns the default, zero-config selector.
func NewPrefixSelector() PrefixSelector {
	return PrefixSelector{}
}

func (PrefixSelector) Select(languageTitle string) (Kind, error) {
	title := normalize(languageTitle)

	switch {
	case strings.HasPrefix(title, "nodejs-"):
		return KindNodeJS, nil
	case strings.HasPrefix(title, "python-"):
		return KindPython, nil
	case strings.HasPrefix(title, "rust-"):
		return KindRust, nil
	default:
		return "", lambdaerr.BadRequest(fmt.Sprintf("unsupported language title: %s", languageTitle), nil)
	}
}
