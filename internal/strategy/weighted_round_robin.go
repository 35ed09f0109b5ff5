package strategy

import (
	"sync"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
)

// weightedRoundRobinStrategy implements smooth weighted round-robin load balancing.
// Uses the Nginx algorithm: each backend accumulates its weight per selection cycle,
// the highest current value is chosen, then reduced by the sum of all weights.
type weightedRoundRobinStrategy struct {
	mutex   sync.Mutex
	current map[*backend.Backend]int // accumulated weight per backend
}

// NewWeightedRoundRobinStrategy creates a weighted round-robin strategy instance.
func NewWeightedRoundRobinStrategy() Strategy {
	return &weightedRoundRobinStrategy{
		current: make(map[*backend.Backend]int),
	}
}

// Select picks the backend with the highest accumulated weight.
// Backends with a non-positive weight are never chosen.
func (w *weightedRoundRobinStrategy) Select(backends []*backend.Backend) (*backend.Backend, bool) {
	if len(backends) == 0 {
		return nil, false
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.cleanup(backends)

	totalWeight := 0
	var chosen *backend.Backend

	for _, b := range backends {
		weight := b.Weight()
		if weight <= 0 {
			continue
		}

		w.current[b] += weight
		totalWeight += weight

		if chosen == nil || w.current[b] > w.current[chosen] {
			chosen = b
		}
	}

	if chosen == nil || totalWeight == 0 {
		return nil, false
	}

	w.current[chosen] -= totalWeight
	return chosen, true
}

// cleanup removes entries for backends no longer in the candidate list,
// e.g. after they turned unhealthy.
func (w *weightedRoundRobinStrategy) cleanup(backends []*backend.Backend) {
	alive := make(map[*backend.Backend]struct{}, len(backends))

	for _, b := range backends {
		alive[b] = struct{}{}
	}

	for b := range w.current {
		if _, ok := alive[b]; !ok {
			delete(w.current, b)
		}
	}
}
