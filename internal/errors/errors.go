package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Jumanaiqbal/schedclient/internal/common"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrPortConflict = errors.New("api port is occupied by another service")
)

// StatusError is returned by the transport for every non-2xx response,
// and for any response whose body could not be read in full.
type StatusError struct {
	Method   string
	URL      string
	Response *common.Response
	// Err is the body read failure, nil when the body was read.
	Err error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reading response with status code %d failed: %v", e.Response.StatusCode, e.Err)
	}
	return fmt.Sprintf("request failed with status code %d", e.Response.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) StatusCode() int {
	return e.Response.StatusCode
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Response.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.Response.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// NetworkError is returned by the transport when no response was received.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request ran out of time before a response arrived.
func (e *NetworkError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
