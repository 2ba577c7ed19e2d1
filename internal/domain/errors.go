package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrMissingConfig   = errors.New("missing configuration")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrProviderFailure = errors.New("provider failure")
	ErrTimeout         = errors.New("timed out")
	ErrJobFailed       = errors.New("job failed")
	ErrCanceled        = errors.New("canceled")
	ErrNotConnected    = errors.New("account not connected")
	ErrDuplicateJob    = errors.New("duplicate job id")
	ErrBusy            = errors.New("operation already in progress")
)

// ProviderError is a non-2xx answer from a third-party API. Message holds the
// provider's own wording when it sent one.
type ProviderError struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d: %s (%s)", e.Provider, e.Status, msg, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, msg)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderFailure
}

// Temporary reports whether retrying the same request later could succeed.
func (e *ProviderError) Temporary() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return e.Status >= 500
}

// MissingConfig reports a required environment variable that was absent at first use.
func MissingConfig(name string) error {
	return fmt.Errorf("%w: %s is required", ErrMissingConfig, name)
}
