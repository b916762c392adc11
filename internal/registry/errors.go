package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable marks transport and authentication failures: the registry
// could not be reached or did not answer in time.
var ErrUnavailable = errors.New("registry unavailable")

// StatusError is returned when the registry answers outside the success
// range. It keeps the raw status and body for diagnosis.
type StatusError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %s returned HTTP %d: %s", e.Op, e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a StatusError with a 404 status.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// EnsureResult is the successful outcome of an idempotent create.
type EnsureResult int

const (
	// Created means this call created the resource.
	Created EnsureResult = iota + 1
	// AlreadyExists means the resource was present, either before the call
	// or because a concurrent writer created it first.
	AlreadyExists
)

func (r EnsureResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}
