package strategy

import (
	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/pkg/selector"
)

func isPrimary(b *backend.Backend) bool {
	return b.IsPrimary()
}

// NewPrimaryStrategy routes only to primaries: the first healthy primary in
// configuration order wins and backups are never used.
func NewPrimaryStrategy() Strategy {
	return selector.NewMaster(isPrimary)
}

// NewPrimaryBackupStrategy prefers the first healthy primary and spreads
// traffic round-robin across backups only while no primary is available.
func NewPrimaryBackupStrategy() Strategy {
	return selector.NewFallback(
		selector.NewMaster(isPrimary),
		selector.NewRoundRobin[*backend.Backend](),
	)
}
