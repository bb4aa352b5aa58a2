package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/Jumanaiqbal/schedclient/internal/auth"
	"github.com/Jumanaiqbal/schedclient/internal/common"
	local_errors "github.com/Jumanaiqbal/schedclient/internal/errors"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	contentTypeJSON     = "application/json"
)

type httpTransportClient struct {
	client  *http.Client
	baseURL *url.URL
	tokens  auth.Store
	logger  zerolog.Logger
}

// CreateHttpTransportClient returns the innermost client: one physical attempt per call,
// bearer token attached when the store has one.
func CreateHttpTransportClient(parameters *TransportParameters, tokens auth.Store, logger zerolog.Logger) (common.ApiClient, error) {
	client := &http.Client{Timeout: parameters.Timeout}
	if parameters.WithCredentials {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	return &httpTransportClient{
		client:  client,
		baseURL: parameters.BaseURL,
		tokens:  tokens,
		logger:  logger,
	}, nil
}

func (c *httpTransportClient) SendResource(ctx context.Context, resource string, r *common.Request) (*common.Response, error) {
	request, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("method", r.Method).Str("path", r.Path).Str("resource", resource).Msg("api call")

	resp, err := c.client.Do(request)
	if err != nil {
		return nil, &local_errors.NetworkError{Method: r.Method, URL: request.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	response := &common.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if err != nil {
		networkErr := &local_errors.NetworkError{Method: r.Method, URL: request.URL.String(), Err: err}
		// running out of time mid-body is still a timeout
		if networkErr.Timeout() {
			return nil, networkErr
		}
		return nil, &local_errors.StatusError{Method: r.Method, URL: request.URL.String(), Response: response, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &local_errors.StatusError{Method: r.Method, URL: request.URL.String(), Response: response}
	}
	c.logger.Debug().Str("path", r.Path).Int("status", resp.StatusCode).Msg("api success")
	return response, nil
}

func (c *httpTransportClient) Send(ctx context.Context, r *common.Request) (*common.Response, error) {
	return c.SendResource(ctx, common.GetResource(r), r)
}

func (c *httpTransportClient) newRequest(ctx context.Context, r *common.Request) (*http.Request, error) {
	target := c.baseURL.JoinPath(r.Path)
	if len(r.Query) > 0 {
		target.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	request, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	request.Header.Set(headerAccept, contentTypeJSON)
	if body != nil {
		request.Header.Set(headerContentType, contentTypeJSON)
	}
	for key, values := range r.Header {
		request.Header.Del(key)
		for _, v := range values {
			request.Header.Add(key, v)
		}
	}
	if request.Header.Get(headerAuthorization) == "" {
		if token := c.token(); token != "" {
			request.Header.Set(headerAuthorization, "Bearer "+token)
		}
	}
	return request, nil
}

func (c *httpTransportClient) token() string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Get(auth.TokenKey)
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Msg("auth token unavailable, sending unauthenticated request")
		}
		return ""
	}
	return token
}
