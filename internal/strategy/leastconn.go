package strategy

import (
	"math"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
)

type leastConnStrategy struct {
}

func (l *leastConnStrategy) Select(backends []*backend.Backend) (*backend.Backend, bool) {
	if len(backends) == 0 {
		return nil, false
	}

	var bestBackend *backend.Backend
	bestConns := math.MaxInt32

	for _, b := range backends {
		activeConns := b.ActiveConnections()
		if activeConns < bestConns {
			bestConns = activeConns
			bestBackend = b
		}
	}

	return bestBackend, bestBackend != nil
}

func NewLeastConnStrategy() Strategy {
	return &leastConnStrategy{}
}
