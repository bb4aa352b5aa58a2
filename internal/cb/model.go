package cb

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerParameters configure the breaker kept for every API resource.
type CircuitBreakerParameters struct {
	// requests let through while half-open
	MaxRequests uint32
	// failures in a row that open the breaker
	ConsecutiveFailures uint32
	// closed-state period after which the counts are cleared; 0 never clears them
	Interval time.Duration
	// how long the breaker stays open
	Timeout time.Duration
}

func (p *CircuitBreakerParameters) readyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= p.ConsecutiveFailures
}
