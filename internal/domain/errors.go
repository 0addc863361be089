package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Validation errors. All of them match ErrInvalidInput with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingFilename      = fmt.Errorf("%w: missing filename", ErrInvalidInput)
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported content type", ErrInvalidInput)
	ErrEmptyInput           = fmt.Errorf("%w: empty text", ErrInvalidInput)
	ErrInvalidK             = fmt.Errorf("%w: k must be > 0", ErrInvalidInput)
	ErrInvalidChunkParams   = fmt.Errorf("%w: invalid chunk parameters", ErrInvalidInput)
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoContent     = errors.New("no valid chunks to index (all were empty or too short)")
	ErrIndexMismatch = errors.New("index and meta were written by different builds")
	ErrGuardrail     = errors.New("answer guardrail violation")
)

// GuardrailKind classifies why a generated answer was rejected.
type GuardrailKind string

const (
	KindEmpty    GuardrailKind = "empty_output"
	KindParse    GuardrailKind = "parse"
	KindShape    GuardrailKind = "shape"
	KindCitation GuardrailKind = "citation"
)

// GuardrailError is the failure outcome of answer generation. The raw model
// output excerpt is kept for debugging.
type GuardrailError struct {
	Kind   GuardrailKind
	Detail string
	Raw    string
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrGuardrail, e.Kind, e.Detail)
}

func (e *GuardrailError) Is(target error) bool {
	return target == ErrGuardrail
}

const rawExcerptRunes = 500

// NewGuardrailError builds a GuardrailError, truncating raw output to 500 runes.
func NewGuardrailError(kind GuardrailKind, detail, raw string) *GuardrailError {
	if utf8.RuneCountInString(raw) > rawExcerptRunes {
		raw = string([]rune(raw)[:rawExcerptRunes])
	}
	return &GuardrailError{Kind: kind, Detail: detail, Raw: raw}
}
