package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("upstream: not found")
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrNoToken      = errors.New("upstream: no access token in context")
)

// Error is a failed upstream call. Status is zero when the request never got
// an HTTP answer.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("upstream %s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("upstream %s: status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}

	return false
}

// IsTransport reports whether err is an upstream failure without a usable
// HTTP answer, or any non-2xx answer other than 404.
func IsTransport(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Status != http.StatusNotFound
}

// MessageOr returns the message the upstream put in its error body, or
// fallback when there is none.
func MessageOr(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}

	return fallback
}
