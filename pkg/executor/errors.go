package executor

import (
	"errors"
	"strconv"
)

var (
	// ErrNoSchema is returned by Response.Result when the originating
	// prompt declared no response schema.
	ErrNoSchema = errors.New("no response schema declared")
)

// AmbiguousToolCallError is returned by Response.ToolCall when the
// response does not contain exactly one tool invocation.
type AmbiguousToolCallError struct {
	Count int
}

func (e *AmbiguousToolCallError) Error() string {
	if e.Count == 0 {
		return "no tool calls in response"
	}

	return "expected one tool call, got " + strconv.Itoa(e.Count)
}

// ErrorKind categorizes provider-neutral failures.
type ErrorKind string

const (
	ErrorKindRateLimit      ErrorKind = "rate_limit"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindContentFilter  ErrorKind = "content_filter"
	ErrorKindTruncated      ErrorKind = "truncated"
	ErrorKindProvider       ErrorKind = "provider"
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// Error is a provider-neutral failure raised at an adapter boundary. The
// original provider error stays reachable through Unwrap.
type Error struct {
	Kind    ErrorKind
	Message string

	Status    int
	Retryable bool

	Provider error
}

func (e *Error) Error() string {
	if e.Provider != nil {
		return e.Message + ": " + e.Provider.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Provider
}

func IsRateLimit(err error) bool {
	var e *Error

	if errors.As(err, &e) {
		return e.Kind == ErrorKindRateLimit
	}

	return false
}

func IsRetryable(err error) bool {
	var e *Error

	if errors.As(err, &e) {
		return e.Retryable
	}

	return false
}

// NewError buckets an HTTP status into the taxonomy.
func NewError(status int, message string, provider error) *Error {
	kind := ErrorKindProvider
	retryable := status >= 500

	switch status {
	case 429:
		kind = ErrorKindRateLimit
		retryable = true

	case 400, 404, 413, 422:
		kind = ErrorKindInvalidRequest
	}

	if message == "" {
		message = "provider request failed with status " + strconv.Itoa(status)
	}

	return &Error{
		Kind:    kind,
		Message: message,

		Status:    status,
		Retryable: retryable,

		Provider: provider,
	}
}
