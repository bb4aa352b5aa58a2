package transport

import (
	"net/url"
	"time"
)

type TransportParameters struct {
	BaseURL         *url.URL
	Timeout         time.Duration
	WithCredentials bool
}
