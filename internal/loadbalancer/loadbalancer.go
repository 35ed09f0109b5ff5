package loadbalancer

import (
	"errors"
	"slices"
	"sync"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/circuitbreaker"
	"github.com/angeloszaimis/failover-balancer/internal/strategy"
)

var (
	ErrNoHealthyBackends = errors.New("no healthy backends")
	ErrNoSelection       = errors.New("strategy selected no backend")
)

type LoadBalancer struct {
	strategy strategy.Strategy
	breakers *circuitbreaker.Registry
	mutex    sync.Mutex
}

// NewLoadBalancer wraps strat with health and circuit breaker filtering.
// breakers may be nil to disable breaker checks.
func NewLoadBalancer(strat strategy.Strategy, breakers *circuitbreaker.Registry) *LoadBalancer {
	return &LoadBalancer{
		strategy: strat,
		breakers: breakers,
	}
}

// GetAndReserveServer selects a backend among the healthy, breaker-admitted
// candidates that are not in exclude, and reserves a connection on it.
// The caller must call DecrementConn on the returned backend when done.
func (lb *LoadBalancer) GetAndReserveServer(backends []*backend.Backend, exclude ...*backend.Backend) (*backend.Backend, error) {
	return lb.reserve(backends, exclude, nil)
}

// GetAndReserveServerWithKey is GetAndReserveServer for strategies that pick
// by request key. The key is ignored by strategies that are not keyed.
func (lb *LoadBalancer) GetAndReserveServerWithKey(backends []*backend.Backend, key string, exclude ...*backend.Backend) (*backend.Backend, error) {
	return lb.reserve(backends, exclude, &key)
}

func (lb *LoadBalancer) reserve(backends []*backend.Backend, exclude []*backend.Backend, key *string) (*backend.Backend, error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	candidates := lb.filterAvailableBackends(backends, exclude)
	if len(candidates) == 0 {
		return nil, ErrNoHealthyBackends
	}

	if ks, ok := lb.strategy.(strategy.Keyed); ok && key != nil {
		ks.SetKey(*key)
	}

	// A breaker may refuse at the last moment when another request took the
	// half-open probe; drop that backend and ask the strategy again.
	for len(candidates) > 0 {
		chosen, ok := lb.strategy.Select(candidates)
		if !ok {
			return nil, ErrNoSelection
		}

		if !lb.breakers.Allow(chosen) {
			candidates = slices.DeleteFunc(candidates, func(b *backend.Backend) bool { return b == chosen })
			continue
		}

		chosen.IncrementConn()
		return chosen, nil
	}

	return nil, ErrNoHealthyBackends
}

func (lb *LoadBalancer) filterAvailableBackends(backends []*backend.Backend, exclude []*backend.Backend) []*backend.Backend {
	available := make([]*backend.Backend, 0, len(backends))

	for _, b := range backends {
		if !b.IsHealthy() || slices.Contains(exclude, b) {
			continue
		}
		if !lb.breakers.Available(b) {
			continue
		}
		available = append(available, b)
	}

	return available
}

func (lb *LoadBalancer) LoadBalancerStrategy() strategy.Strategy {
	return lb.strategy
}
