package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HealthStatus summarises a provider's breaker state.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ProviderHealth is a snapshot of one provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// Rejected counts answers that failed the caller's request without
	// counting against the provider, such as a 404 or a 422.
	Rejected uint64

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports whether the breaker is closed.
func (h *ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// Status maps the breaker state: closed is healthy, half-open degraded and
// open unhealthy.
func (h *ProviderHealth) Status() HealthStatus {
	switch h.CircuitState {
	case gobreaker.StateClosed:
		return StatusHealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Registry tracks the outcome of requests per provider.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*tracked
	now       func() time.Time
}

type tracked struct {
	client        *Client
	rejected      uint64
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*tracked),
		now:       time.Now,
	}
}

// Register adds a provider client. NewClient calls it when
// ClientConfig.Registry is set.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &tracked{client: client}
}

// Record records the outcome of one request to a provider, classified with
// IsFailure. Unknown providers are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}

	now := r.now()
	switch {
	case err == nil:
		p.lastSuccessAt = &now
	case !IsFailure(err):
		p.rejected++
		p.lastSuccessAt = &now
	default:
		p.lastFailureAt = &now
		p.lastError = err.Error()
	}
}

// Health returns the snapshot of one provider, or nil if it is unknown.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.snapshot(name)
}

// All returns the snapshots of every provider ordered by name.
func (r *Registry) All() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		all = append(all, p.snapshot(name))
	}
	slices.SortFunc(all, func(a, b *ProviderHealth) int {
		return strings.Compare(a.Name, b.Name)
	})
	return all
}

func (p *tracked) snapshot(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		Rejected:      p.rejected,
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
