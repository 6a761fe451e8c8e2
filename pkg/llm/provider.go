// Package llm defines the boundary to the remote translation service.
//
// Example usage:
//
//	gateway, err := openai.NewProvider(os.Getenv("OPENAI_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	text, err := gateway.Translate(ctx, prompts.Detect("hello"))
//	if err != nil {
//	    var statusErr *llm.StatusError
//	    switch {
//	    case errors.As(err, &statusErr):
//	        // non-2xx from the API
//	    case errors.Is(err, llm.ErrNoTranslation):
//	        // response without usable content
//	    }
//	}
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Gateway turns an instruction into translated text.
//
// Implementations make exactly one remote call per Translate and never retry.
// A failure is always reported through the error, never through the text, so
// callers can tell success from failure without inspecting content.
type Gateway interface {
	Translate(ctx context.Context, instruction string) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, instruction string) (string, error)

// Translate calls f.
func (f GatewayFunc) Translate(ctx context.Context, instruction string) (string, error) {
	return f(ctx, instruction)
}

var (
	// ErrNoTranslation is returned when the API answered but the payload held
	// no usable translation (no choices, empty content or malformed JSON).
	ErrNoTranslation = errors.New("no translation available")

	// ErrTransport wraps failures to reach the API at all.
	ErrTransport = errors.New("translation request failed")
)

// StatusError reports a non-success HTTP status from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API call failed with status: %d", e.StatusCode)
	}
	return fmt.Sprintf("API call failed with status: %d: %s", e.StatusCode, e.Body)
}
