package cb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

type circuitBreaker[T any, V any] struct {
	*gobreaker.CircuitBreaker[*V]
}

func (cb *circuitBreaker[T, V]) execute(ctx context.Context, f func(ctx context.Context, request *T) (*V, error), request *T) (*V, error) {
	return cb.CircuitBreaker.Execute(func() (*V, error) {
		return f(ctx, request)
	})
}

func newCircuitBreaker[T any, V any](parameters *CircuitBreakerParameters, resource string, isFailure func(error) bool, logger zerolog.Logger) *circuitBreaker[T, V] {
	return &circuitBreaker[T, V]{
		CircuitBreaker: gobreaker.NewCircuitBreaker[*V](gobreaker.Settings{
			Name:        fmt.Sprintf("api client circuit breaker for resource %s", resource),
			MaxRequests: parameters.MaxRequests,
			Interval:    parameters.Interval,
			Timeout:     parameters.Timeout,
			ReadyToTrip: parameters.readyToTrip,
			IsSuccessful: func(err error) bool {
				return err == nil || !isFailure(err)
			},
			OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
				logger.Warn().
					Str("resource", resource).
					Str("from", from.String()).
					Str("to", to.String()).
					Dur("open_for", parameters.Timeout).
					Msg("circuit breaker state changed")
			},
		}),
	}
}
