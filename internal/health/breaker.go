package health

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
)

// ErrBreakerOpen reports that the event source breaker is rejecting queries,
// so dashboard aggregates are being served from fallbacks.
var ErrBreakerOpen = errors.New("health: event source circuit breaker is open")

// StateReporter is implemented by source.BreakerSource.
type StateReporter interface {
	State() gobreaker.State
}

// BreakerChecker reports the state of the event source circuit breaker.
type BreakerChecker struct {
	breaker StateReporter
}

// NewBreakerChecker creates a checker for the given breaker.
func NewBreakerChecker(b StateReporter) *BreakerChecker {
	return &BreakerChecker{breaker: b}
}

// HealthCheck returns ErrBreakerOpen while the breaker is open. Half-open
// counts as healthy since probe requests are flowing again.
func (c *BreakerChecker) HealthCheck(ctx context.Context) error {
	if c.breaker == nil {
		return ErrNotConfigured
	}
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrBreakerOpen
	}
	return nil
}
