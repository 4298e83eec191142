package llm

import (
	"errors"
	"fmt"
)

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}

// ErrEmptyResponse is returned when the provider answered but produced no text.
var ErrEmptyResponse = errors.New("LLM response was empty")

// ErrInvalidObject wraps schema violations in structured generation output.
type ErrInvalidObject struct {
	Reason string
}

func (e ErrInvalidObject) Error() string {
	return fmt.Sprintf("LLM returned an invalid object: %s", e.Reason)
}
