package analysis

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Callers test with errors.Is; adapters wrap the provider
// cause in *Error so the class survives fmt.Errorf wrapping.
var (
	// ErrIO indicates the local media read failed (corrupt file, permission, bad type).
	ErrIO = errors.New("media read failed")
	// ErrConfiguration indicates a missing key or an unknown feature mapping.
	ErrConfiguration = errors.New("configuration error")
	// ErrNetwork indicates a transport failure talking to the model.
	ErrNetwork = errors.New("network error")
	// ErrRateLimit indicates the provider returned a quota/limit error (HTTP 429 or similar).
	ErrRateLimit = errors.New("ai quota exceeded")
	// ErrModelRefusal indicates the model declined or returned no usable content.
	ErrModelRefusal = errors.New("model returned no usable content")
	// ErrSchemaViolation indicates a structured answer did not match its declared shape.
	ErrSchemaViolation = errors.New("structured response violates schema")
	// ErrTimeout indicates the request outlived its deadline.
	ErrTimeout = errors.New("analysis timed out")
	// ErrCanceled indicates the caller abandoned the request.
	ErrCanceled = errors.New("analysis canceled")
	// ErrBusy indicates a request is already in flight for the same owner.
	ErrBusy = errors.New("analysis already in progress")
)

var classes = []error{
	ErrIO, ErrConfiguration, ErrNetwork, ErrRateLimit, ErrModelRefusal,
	ErrSchemaViolation, ErrTimeout, ErrCanceled, ErrBusy,
}

// Error carries a failure class together with its cause.
type Error struct {
	Class error
	Op    string
	Err   error
	// RetryAfter is the provider suggested delay, zero when unknown.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Class, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Class, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Class)
	}
	return e.Class.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Class }

// Wrap classifies err. A nil err stays nil.
func Wrap(class error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: class, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(class error, op, format string, args ...any) error {
	return &Error{Class: class, Op: op, Err: fmt.Errorf(format, args...)}
}

// ClassOf returns the sentinel class of err, or nil when err is unclassified.
func ClassOf(err error) error {
	for _, c := range classes {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// Retryable reports whether a failure is transient (network or rate limit).
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimit)
}

// RetryAfter extracts a provider suggested delay from err.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
