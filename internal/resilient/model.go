package resilient

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

type RetryParameters struct {
	MaxRetry       uint8
	BackoffTimeout time.Duration
}

type ResilienceParameters struct {
	Retry *RetryParameters
	// BaseURL is used to name the port in conflict diagnostics and to locate the health endpoint.
	BaseURL      *url.URL
	ProbeTimeout time.Duration
	// ConflictDetector is consulted on every 403; nil disables the check.
	ConflictDetector ConflictDetector
	// DisableProbe skips the liveness probe after a terminal network failure.
	DisableProbe bool
}

// ConflictDetector reports whether a response came from an unrelated local service
// listening on the API port rather than from the API itself.
type ConflictDetector func(header http.Header) bool

// AirTunesDetector matches macOS AirPlay receivers, which answer 403 on port 5000.
func AirTunesDetector(header http.Header) bool {
	return strings.Contains(strings.ToLower(header.Get("Server")), "airtunes")
}

var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

const (
	MessageTimeout           = "Request timed out. Please try again."
	MessageBackendReachable  = "Network error. Backend reachable but request failed, check endpoint path."
	MessageBackendDown       = "Backend appears down or unreachable. Verify server running."
	MessageNotFound          = "Requested resource not found."
	MessageUnexpected        = "An unexpected error occurred"
	messagePortConflictTempl = "Backend unreachable on port %s: another service (%s) is responding instead of the API. " +
		"Change the backend PORT (e.g. 5001) and update the API base URL, then restart both servers."
)
