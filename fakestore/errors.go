package fakestore

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned for ids the remote API does not know. The API
// answers those with 200 and a null body.
var ErrNotFound = errors.New("fakestore: not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string // first bytes of the response body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fakestore: %s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// Temporary reports whether retrying may help: 5xx and 429.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, ErrNotFound)
}
