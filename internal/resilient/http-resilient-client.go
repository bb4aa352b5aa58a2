package resilient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jumanaiqbal/schedclient/internal/common"
	local_errors "github.com/Jumanaiqbal/schedclient/internal/errors"
)

type resilientApiClient struct {
	client         common.ApiClient
	maxRetry       uint8
	backoffTimeout time.Duration
	baseURL        *url.URL
	detector       ConflictDetector
	prober         *healthProber
	sleep          func(ctx context.Context, d time.Duration) error
	logger         zerolog.Logger
}

// callContext is the state of one logical call, shared by all of its attempts.
type callContext struct {
	request    *common.Request
	retryCount int
}

func (c *callContext) info() local_errors.RequestInfo {
	return local_errors.RequestInfo{
		Method:  c.request.Method,
		Path:    c.request.Path,
		Retries: c.retryCount,
	}
}

func CreateResilientApiClient(client common.ApiClient, parameters *ResilienceParameters, logger zerolog.Logger) common.ApiClient {
	c := resilientApiClient{ // default to not retry
		client:   client,
		baseURL:  parameters.BaseURL,
		detector: parameters.ConflictDetector,
		sleep:    sleep,
		logger:   logger,
	}
	if parameters.Retry != nil {
		c.maxRetry = parameters.Retry.MaxRetry
		c.backoffTimeout = parameters.Retry.BackoffTimeout
	}
	if parameters.BaseURL != nil && !parameters.DisableProbe {
		c.prober = newHealthProber(parameters.BaseURL, parameters.ProbeTimeout)
	}
	return &c
}

func (c *resilientApiClient) SendResource(ctx context.Context, resource string, r *common.Request) (*common.Response, error) {
	return c.doWithRetry(ctx, resource, &callContext{request: r})
}

func (c *resilientApiClient) Send(ctx context.Context, r *common.Request) (*common.Response, error) {
	return c.SendResource(ctx, common.GetResource(r), r)
}

func (c *resilientApiClient) doWithRetry(ctx context.Context, resource string, call *callContext) (*common.Response, error) {
	for {
		resp, err := c.client.SendResource(ctx, resource, call.request)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if accessErr := c.accessFailure(call, err); accessErr != nil {
			return nil, accessErr
		}
		if !c.shouldRetry(call, err) {
			return nil, c.normalize(ctx, call, err)
		}
		call.retryCount++
		delay := c.backoff(call.retryCount)
		c.logger.Info().
			Str("path", call.request.Path).
			Int("retry", call.retryCount).
			Uint8("max_retry", c.maxRetry).
			Dur("delay", delay).
			Err(err).
			Msg("retrying request")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// accessFailure handles 401 and 403, which are never retried.
// It returns nil when err is not an access failure.
func (c *resilientApiClient) accessFailure(call *callContext, err error) error {
	var statusErr *local_errors.StatusError
	if !errors.As(err, &statusErr) {
		return nil
	}
	switch statusErr.StatusCode() {
	case http.StatusUnauthorized:
		c.logger.Warn().Str("path", call.request.Path).Msg("unauthorized: token missing or expired")
		return err
	case http.StatusForbidden:
		if c.detector != nil && c.detector(statusErr.Response.Header) {
			c.logger.Warn().
				Str("path", call.request.Path).
				Str("server", statusErr.Response.Header.Get("Server")).
				Msg("port conflict detected")
			return c.portConflictError(call, statusErr)
		}
		c.logger.Warn().Str("path", call.request.Path).Msg("forbidden: insufficient permissions for this resource")
		return err
	}
	return nil
}

func (c *resilientApiClient) shouldRetry(call *callContext, err error) bool {
	if call.retryCount >= int(c.maxRetry) {
		return false
	}
	return isRetryable(err)
}

func isRetryable(err error) bool {
	var networkErr *local_errors.NetworkError
	if errors.As(err, &networkErr) {
		return true
	}
	var statusErr *local_errors.StatusError
	if errors.As(err, &statusErr) {
		_, ok := retryableStatuses[statusErr.StatusCode()]
		return ok
	}
	return false
}

// backoff doubles the base delay on every retry: base, 2*base, 4*base...
func (c *resilientApiClient) backoff(retryCount int) time.Duration {
	return c.backoffTimeout * time.Duration(1<<(retryCount-1))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *resilientApiClient) normalize(ctx context.Context, call *callContext, err error) *local_errors.TransportError {
	transportErr := &local_errors.TransportError{
		Cause:   err,
		Request: call.info(),
	}

	var networkErr *local_errors.NetworkError
	var statusErr *local_errors.StatusError
	switch {
	case errors.As(err, &networkErr) && networkErr.Timeout():
		transportErr.Kind = local_errors.KindTimeout
		transportErr.Message = MessageTimeout
	case errors.As(err, &networkErr):
		transportErr.Kind = local_errors.KindNetwork
		transportErr.Message = MessageBackendDown
		if c.prober != nil {
			status := c.prober.probe(ctx)
			transportErr.Health = status.String()
			if status.reachable {
				transportErr.Message = MessageBackendReachable
			}
		}
	case errors.As(err, &statusErr):
		transportErr.Response = statusErr.Response
		if statusErr.StatusCode() == http.StatusNotFound {
			transportErr.Kind = local_errors.KindNotFound
			transportErr.Message = MessageNotFound
		} else {
			transportErr.Kind = local_errors.KindStatus
			transportErr.Message = firstNonEmpty(errorFromBody(statusErr.Response.Body), err.Error(), MessageUnexpected)
		}
	default:
		transportErr.Kind = local_errors.KindUnknown
		transportErr.Message = firstNonEmpty(err.Error(), MessageUnexpected)
	}

	event := c.logger.Error().
		Str("kind", string(transportErr.Kind)).
		Str("method", call.request.Method).
		Str("path", call.request.Path).
		Int("retries", call.retryCount).
		Err(err)
	if transportErr.Response != nil {
		event = event.Int("status", transportErr.Response.StatusCode)
	}
	if transportErr.Health != "" {
		event = event.Str("health", transportErr.Health)
	}
	event.Msg("api error")
	return transportErr
}

func (c *resilientApiClient) portConflictError(call *callContext, statusErr *local_errors.StatusError) *local_errors.TransportError {
	return &local_errors.TransportError{
		Kind:     local_errors.KindPortConflict,
		Message:  fmt.Sprintf(messagePortConflictTempl, portOf(c.baseURL), statusErr.Response.Header.Get("Server")),
		Cause:    statusErr,
		Request:  call.info(),
		Response: statusErr.Response,
	}
}

func portOf(u *url.URL) string {
	if u == nil {
		return "unknown"
	}
	if port := u.Port(); port != "" {
		return port
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// errorFromBody extracts the backend's {"error": "..."} text, if any.
func errorFromBody(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
