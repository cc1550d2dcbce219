package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Category classifies a provider failure. Callers use it to pick a user-safe
// substitute message; the underlying error is only ever logged.
type Category string

const (
	CategoryRateLimit      Category = "rate_limit"
	CategoryTimeout        Category = "timeout"
	CategoryNetwork        Category = "network"
	CategoryInvalidRequest Category = "invalid_request"
	CategoryUnknown        Category = "unknown"
)

// Error is the typed failure every adapter call surfaces.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(category Category, message string, err error) *Error {
	return &Error{Category: category, Message: message, Err: err}
}

// Classify normalizes an arbitrary SDK or transport error into an *Error.
// Already-classified errors pass through unchanged.
func Classify(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CategoryTimeout, "request timed out", err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return newError(CategoryTimeout, "request timed out", err)
		}
		return newError(CategoryNetwork, "network connection failed", err)
	}

	// Fall back to sniffing the SDK error text, the way the status-code based
	// normalization works when the SDK loses the structured response.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"):
		return newError(CategoryRateLimit, "rate limit exceeded", err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return newError(CategoryTimeout, "request timed out", err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "broken pipe"):
		return newError(CategoryNetwork, "network connection failed", err)
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalid request"), strings.Contains(msg, "invalid_request"):
		return newError(CategoryInvalidRequest, "invalid completion request", err)
	default:
		return newError(CategoryUnknown, "completion call failed", err)
	}
}
