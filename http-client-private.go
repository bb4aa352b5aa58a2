package schedclient

import (
	"github.com/rs/zerolog"

	"github.com/Jumanaiqbal/schedclient/internal/auth"
	"github.com/Jumanaiqbal/schedclient/internal/cb"
	"github.com/Jumanaiqbal/schedclient/internal/resilient"
)

type clientCreationParameters struct {
	retryParameters          *resilient.RetryParameters
	circuitBreakerParameters *cb.CircuitBreakerParameters
	tokenStore               auth.Store
	conflictDetector         resilient.ConflictDetector
	disableProbe             bool
	logger                   zerolog.Logger
}

func newClientCreationParameters(cfg *Config) *clientCreationParameters {
	parameters := &clientCreationParameters{
		retryParameters: &resilient.RetryParameters{
			MaxRetry:       cfg.Retry.MaxRetries,
			BackoffTimeout: cfg.Retry.BaseDelay,
		},
		logger: zerolog.Nop(),
	}
	if cfg.Breaker.Enabled {
		parameters.circuitBreakerParameters = &cb.CircuitBreakerParameters{
			MaxRequests:         cfg.Breaker.MaxRequests,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
		}
	}
	if cfg.ConflictDetection {
		parameters.conflictDetector = resilient.AirTunesDetector
	}
	return parameters
}
