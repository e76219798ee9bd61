// Package runtimeselect maps a session's language_title tag to a concrete
// RuntimeKind via one of several pluggable strategies.
package runtimeselect

import (
	"golang.org/x/text/unicode/norm"
)

// Kind identifies a supported worker runtime.
type Kind string

const (
	KindNodeJS Kind = "nodejs"
	KindPython Kind = "python"
	KindRust   Kind = "rust"
)

// Selector maps a language_title to a Kind.
type Selector interface {
	Select(languageTitle string) (Kind, error)
}

// normalize applies Unicode NFC normalization so visually-identical but
// differently-encoded language_title tags (e.g. combining vs precomposed
// accents) select the same runtime deterministically.
func normalize(s string) string {
	return norm.NFC.String(s)
}

var _ Selector = PrefixSelector{}
