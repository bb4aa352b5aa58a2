package schedclient

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jumanaiqbal/schedclient/internal/auth"
	"github.com/Jumanaiqbal/schedclient/internal/cb"
	"github.com/Jumanaiqbal/schedclient/internal/common"
	"github.com/Jumanaiqbal/schedclient/internal/config"
	"github.com/Jumanaiqbal/schedclient/internal/resilient"
	"github.com/Jumanaiqbal/schedclient/internal/transport"
)

type Config = config.Config

const DefaultTimeout = config.DefaultTimeout

// TokenStore is the persistent storage the bearer token is read from, under the key "authToken".
type TokenStore = auth.Store

// LoadConfig resolves the configuration from defaults, an optional YAML file, an optional
// .env file and SCHEDULER_* environment variables.
func LoadConfig(configFile, dotEnvFile string) (*Config, error) {
	return config.Load(configFile, dotEnvFile)
}

func DefaultConfig() *Config {
	return config.Default()
}

func NewFileTokenStore(path string) *auth.FileStore {
	return auth.NewFileStore(path)
}

func NewMemoryTokenStore(values map[string]string) *auth.MemoryStore {
	return auth.NewMemoryStore(values)
}

// Client calls the scheduling API.
// Every call is retried on transient failures; terminal failures are returned as *TransportError,
// except 401 and 403 responses, which are returned as is.
type Client struct {
	api    common.ApiClient
	logger zerolog.Logger
}

// Get new instance of Client.
// cfg is read once; changing it afterwards has no effect on the client.
// Requests and health checks always time out after DefaultTimeout.
func Create(cfg *Config, opts ...func(*clientCreationParameters) *clientCreationParameters) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	baseURL, err := cfg.ParsedBaseURL()
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	parameters := newClientCreationParameters(cfg)
	for _, o := range opts {
		parameters = o(parameters)
	}
	if parameters.tokenStore == nil {
		parameters.tokenStore = auth.NewFileStore(cfg.StoragePath)
	}

	api, err := transport.CreateHttpTransportClient(&transport.TransportParameters{
		BaseURL:         baseURL,
		Timeout:         config.DefaultTimeout,
		WithCredentials: cfg.WithCredentials,
	}, parameters.tokenStore, parameters.logger)
	if err != nil {
		return nil, err
	}
	if parameters.circuitBreakerParameters != nil {
		api = cb.CreateCircuitBreakerApiClient(api, parameters.circuitBreakerParameters, parameters.logger)
	}
	api = resilient.CreateResilientApiClient(api, &resilient.ResilienceParameters{
		Retry:            parameters.retryParameters,
		BaseURL:          baseURL,
		ProbeTimeout:     config.DefaultTimeout,
		ConflictDetector: parameters.conflictDetector,
		DisableProbe:     parameters.disableProbe,
	}, parameters.logger)

	return &Client{api: api, logger: parameters.logger}, nil
}

// Override the retry policy from the configuration.
// Delays double on every retry, starting at backoffTimeout.
func WithRetry(maxRetry uint8,
	backoffTimeout time.Duration) func(h *clientCreationParameters) *clientCreationParameters {
	return func(h *clientCreationParameters) *clientCreationParameters {
		retryParameters := new(resilient.RetryParameters)
		retryParameters.BackoffTimeout = backoffTimeout
		retryParameters.MaxRetry = maxRetry
		h.retryParameters = retryParameters
		return h
	}
}

// Apply a circuit breaker per API resource.
// https://github.com/sony/gobreaker
func WithCircuitBreaker(maxRequests uint32,
	consecutiveFailures uint32,
	interval time.Duration,
	timeout time.Duration) func(h *clientCreationParameters) *clientCreationParameters {
	return func(h *clientCreationParameters) *clientCreationParameters {
		circuitBreakerParameters := new(cb.CircuitBreakerParameters)
		circuitBreakerParameters.MaxRequests = maxRequests
		circuitBreakerParameters.ConsecutiveFailures = consecutiveFailures
		circuitBreakerParameters.Interval = interval
		circuitBreakerParameters.Timeout = timeout
		h.circuitBreakerParameters = circuitBreakerParameters
		return h
	}
}

func WithTokenStore(store TokenStore) func(h *clientCreationParameters) *clientCreationParameters {
	return func(h *clientCreationParameters) *clientCreationParameters {
		h.tokenStore = store
		return h
	}
}

// Replace the check that recognises an unrelated service answering on the API port.
// nil disables it.
func WithConflictDetector(detector ConflictDetector) func(h *clientCreationParameters) *clientCreationParameters {
	return func(h *clientCreationParameters) *clientCreationParameters {
		h.conflictDetector = detector
		return h
	}
}

func WithoutHealthProbe() func(h *clientCreationParameters) *clientCreationParameters {
	return func(h *clientCreationParameters) *clientCreationParameters {
		h.disableProbe = true
		return h
	}
}

func WithLogger(logger zerolog.Logger) func(h *clientCreationParameters) *clientCreationParameters {
	return func(h *clientCreationParameters) *clientCreationParameters {
		h.logger = logger
		return h
	}
}
