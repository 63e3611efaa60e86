// Package resilience wraps HTTP calls to the activity store and the token
// endpoint with a circuit breaker, timeouts and retries.
package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatus returns the status the provider answered with.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// statusCoder is implemented by errors built from a provider's answer.
type statusCoder interface {
	HTTPStatus() int
}

// IsFailure reports whether err counts against a provider's health.
// Transport errors and 5xx answers do. A 4xx answer (rejected credentials,
// a missing activity, a rate limit, a validation error) means the provider
// is up and does not.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() >= http.StatusInternalServerError
	}
	return true
}

// BreakerConfig configures the circuit breaker in front of a provider.
type BreakerConfig struct {
	Name string

	// HalfOpenRequests is the number of trial requests let through after
	// the cooldown. Default: 1
	HalfOpenRequests uint32

	// Cooldown is how long the breaker stays open. Default: 30 seconds
	Cooldown time.Duration

	// Window clears the counts periodically while closed. Zero keeps them
	// for the life of the process.
	Window time.Duration

	// The breaker opens once MinRequests were seen and at least
	// FailureRatio of them failed.
	MinRequests  uint32
	FailureRatio float64

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig opens after 5 requests with half of them failing.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		Cooldown:         30 * time.Second,
		MinRequests:      5,
		FailureRatio:     0.5,
	}
}

// ShouldTrip reports whether counts open the breaker.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// newBreaker builds the breaker for one provider. Answers that IsFailure
// rejects are counted as successes even though Execute returns them as
// errors.
func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: cfg.ShouldTrip,
		IsSuccessful: func(err error) bool {
			return !IsFailure(err)
		},
		OnStateChange: cfg.OnStateChange,
	})
}
