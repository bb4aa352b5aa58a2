package errors

import (
	"github.com/Jumanaiqbal/schedclient/internal/common"
)

type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindNotFound     Kind = "not_found"
	KindPortConflict Kind = "port_conflict"
	KindStatus       Kind = "status"
	KindUnknown      Kind = "unknown"
)

// RequestInfo is the request context captured when a call fails for good.
type RequestInfo struct {
	Method  string
	Path    string
	Retries int
}

// TransportError is the single shape every terminal failure is converted into.
// Message is safe to show to an operator as is.
type TransportError struct {
	Kind     Kind
	Message  string
	Cause    error
	Request  RequestInfo
	Response *common.Response
	// Health holds the liveness probe outcome when one was run.
	Health string
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) Is(target error) bool {
	return target == ErrPortConflict && e.Kind == KindPortConflict
}

func (e *TransportError) IsTransportError() bool {
	return true
}

// StatusCode returns the response status, or 0 when nothing was received.
func (e *TransportError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}
