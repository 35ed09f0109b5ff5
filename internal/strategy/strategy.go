package strategy

import (
	"errors"
	"strings"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/pkg/selector"
)

const (
	RoundRobin         = "round-robin"
	Random             = "random"
	LeastConn          = "least-conn"
	LeastResponse      = "least-response"
	WeightedRoundRobin = "weighted-round-robin"
	ConsistentHash     = "consistent-hash"
	Primary            = "primary"
	PrimaryBackup      = "primary-backup"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy selects one backend out of the healthy candidates.
type Strategy = selector.Selector[*backend.Backend]

// Keyed is implemented by strategies whose choice depends on a request key,
// such as the client address for consistent hashing.
type Keyed interface {
	SetKey(key string)
}

// Names lists every strategy New understands.
func Names() []string {
	return []string{RoundRobin, Random, LeastConn, LeastResponse, WeightedRoundRobin, ConsistentHash, Primary, PrimaryBackup}
}

// New builds the strategy registered under name. virtualNodes only applies
// to consistent hashing.
func New(name string, virtualNodes int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RoundRobin:
		return selector.NewRoundRobin[*backend.Backend](), nil
	case Random:
		return selector.NewRandom[*backend.Backend](), nil
	case LeastConn:
		return NewLeastConnStrategy(), nil
	case LeastResponse:
		return NewLeastResponseStrategy(), nil
	case WeightedRoundRobin:
		return NewWeightedRoundRobinStrategy(), nil
	case ConsistentHash:
		return NewConsistentHashStrategy(virtualNodes), nil
	case Primary:
		return NewPrimaryStrategy(), nil
	case PrimaryBackup:
		return NewPrimaryBackupStrategy(), nil
	default:
		return nil, ErrUnknownStrategy
	}
}
