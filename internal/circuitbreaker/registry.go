package circuitbreaker

import (
	"sync"
	"time"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
)

// Registry keeps one breaker per backend. A nil *Registry disables breaking:
// every backend is available and outcomes are discarded.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
}

func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

// For returns the breaker guarding b, creating it on first use.
func (r *Registry) For(b *backend.Backend) *CircuitBreaker {
	key := b.URL().String()

	r.mutex.RLock()
	cb, ok := r.breakers[key]
	r.mutex.RUnlock()
	if ok {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cb, ok = r.breakers[key]; ok {
		return cb
	}
	cb = NewCircuitBreaker(r.threshold, r.timeout)
	r.breakers[key] = cb
	return cb
}

// Available reports whether b may be offered to a strategy.
func (r *Registry) Available(b *backend.Backend) bool {
	return r == nil || r.For(b).Available()
}

// Allow claims a request slot on b.
func (r *Registry) Allow(b *backend.Backend) bool {
	return r == nil || r.For(b).Allow()
}

func (r *Registry) RecordSuccess(b *backend.Backend) {
	if r != nil {
		r.For(b).RecordSuccess()
	}
}

func (r *Registry) RecordFailure(b *backend.Backend) {
	if r != nil {
		r.For(b).RecordFailure()
	}
}

// Release hands back a slot claimed by Allow when the attempt ended without
// a verdict on the backend.
func (r *Registry) Release(b *backend.Backend) {
	if r != nil {
		r.For(b).Release()
	}
}

// Stats returns the state of every breaker created so far, keyed by backend
// URL.
func (r *Registry) Stats() map[string]State {
	if r == nil {
		return nil
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for url, cb := range r.breakers {
		stats[url] = cb.State()
	}
	return stats
}

// States is Stats rendered for the metrics snapshot.
func (r *Registry) States() map[string]string {
	stats := r.Stats()
	if stats == nil {
		return nil
	}

	out := make(map[string]string, len(stats))
	for url, st := range stats {
		out[url] = st.String()
	}
	return out
}
