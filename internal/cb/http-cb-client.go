package cb

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Jumanaiqbal/schedclient/internal/common"
	local_errors "github.com/Jumanaiqbal/schedclient/internal/errors"
)

type circuitBreakerBackedApiClient struct {
	client          common.ApiClient
	parameters      CircuitBreakerParameters
	circuitBreakers sync.Map
	logger          zerolog.Logger
}

func CreateCircuitBreakerApiClient(client common.ApiClient, circuitBreakerParameters *CircuitBreakerParameters, logger zerolog.Logger) common.ApiClient {
	return &circuitBreakerBackedApiClient{
		client:     client,
		parameters: *circuitBreakerParameters,
		logger:     logger,
	}
}

func (c *circuitBreakerBackedApiClient) SendResource(ctx context.Context, resource string, r *common.Request) (*common.Response, error) {
	cb := c.getCircuitBreaker(resource)
	return cb.execute(ctx, func(ctx context.Context, request *common.Request) (*common.Response, error) {
		return c.client.SendResource(ctx, resource, request)
	}, r)
}

func (c *circuitBreakerBackedApiClient) Send(ctx context.Context, r *common.Request) (*common.Response, error) {
	return c.SendResource(ctx, common.GetResource(r), r)
}

func (c *circuitBreakerBackedApiClient) getCircuitBreaker(resource string) *circuitBreaker[common.Request, common.Response] {
	if cb, ok := c.circuitBreakers.Load(resource); ok {
		return cb.(*circuitBreaker[common.Request, common.Response])
	}
	cb, _ := c.circuitBreakers.LoadOrStore(resource, newCircuitBreaker[common.Request, common.Response](&c.parameters, resource, isFailure, c.logger))
	return cb.(*circuitBreaker[common.Request, common.Response])
}

// isFailure counts only unavailability against the breaker: no response, or a 5xx.
// A 4xx means the backend is up and answering.
func isFailure(err error) bool {
	var networkErr *local_errors.NetworkError
	if errors.As(err, &networkErr) {
		return true
	}
	var statusErr *local_errors.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode() >= http.StatusInternalServerError
	}
	return false
}
