package common

import (
	"context"
	"net/http"
	"net/url"
)

// Request describes one logical call against the scheduling API.
// It is never mutated once handed to a client, so it can be re-sent on retry.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Common interface for all decorators
type ApiClient interface {
	// resource is a semantic name used to separate circuit breakers
	SendResource(ctx context.Context, resource string, r *Request) (*Response, error)
	// gets resource from method + path
	Send(ctx context.Context, r *Request) (*Response, error)
}

func GetResource(r *Request) string {
	return r.Method + "_" + r.Path
}
