package schedclient

import (
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"

	local_errors "github.com/Jumanaiqbal/schedclient/internal/errors"
	"github.com/Jumanaiqbal/schedclient/internal/resilient"
)

// TransportError is the normalized error every terminal failure is returned as.
// Its Error() text is meant to be shown to the operator.
type TransportError = local_errors.TransportError

// StatusError is the original error of a 401 or 403 response.
type StatusError = local_errors.StatusError

type ConflictDetector = resilient.ConflictDetector

var (
	ErrUnauthorized = local_errors.ErrUnauthorized
	ErrForbidden    = local_errors.ErrForbidden
	ErrNotFound     = local_errors.ErrNotFound
	ErrPortConflict = local_errors.ErrPortConflict
)

// AirTunesDetector is the default ConflictDetector: macOS AirPlay answers on port 5000.
func AirTunesDetector(header http.Header) bool {
	return resilient.AirTunesDetector(header)
}

func AsTransportError(err error) (*TransportError, bool) {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr, true
	}
	return nil, false
}

func IsTransportError(err error) bool {
	_, ok := AsTransportError(err)
	return ok
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports a permission failure; a port conflict is not one.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) && !IsTransportError(err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsTimeout(err error) bool {
	transportErr, ok := AsTransportError(err)
	return ok && transportErr.Kind == local_errors.KindTimeout
}

func IsPortConflict(err error) bool {
	return errors.Is(err, ErrPortConflict)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
