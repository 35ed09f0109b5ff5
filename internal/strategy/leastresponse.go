package strategy

import (
	"time"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
)

type leastResponseStrategy struct{}

// Select scores each backend by EWMA × (active connections + 1). A backend
// with no recorded responses is tried immediately so it gets a score.
func (l *leastResponseStrategy) Select(backends []*backend.Backend) (*backend.Backend, bool) {
	if len(backends) == 0 {
		return nil, false
	}

	var chosen *backend.Backend
	var best time.Duration

	for _, b := range backends {
		ewma := b.EWMATime()

		if ewma == 0 {
			return b, true
		}

		score := ewma * (time.Duration(b.ActiveConnections()) + 1)

		if chosen == nil || score < best {
			chosen = b
			best = score
		}
	}

	return chosen, true
}

func NewLeastResponseStrategy() Strategy {
	return &leastResponseStrategy{}
}
