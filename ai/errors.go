package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrGateway is matched by every error returned from a language model call.
	ErrGateway = errors.New("language model gateway error")

	// ErrEmptyCompletion indicates the model returned no choices.
	ErrEmptyCompletion = errors.New("model returned no completion")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// GatewayError describes a failed language model or embedding call after retries.
type GatewayError struct {
	Op       string // "invoke" or "embed"
	Model    string
	Attempts int
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Op, e.Model, e.Attempts, e.Err)
}

// Unwrap exposes both the ErrGateway sentinel and the underlying cause.
func (e *GatewayError) Unwrap() []error {
	return []error{ErrGateway, e.Err}
}
