// Package strategy implements backend-aware load balancing strategies on top
// of the generic selector contract:
//
//   - Round Robin: Sequential distribution across backends
//   - Random: Random backend selection
//   - Least Connections: Routes to backend with fewest active connections
//   - Least Response Time: Routes based on exponentially weighted moving average (EWMA) response times
//   - Consistent Hash: Client affinity through a crc32 ring with virtual nodes
//   - Weighted Round Robin: Distribution proportional to backend weights
//   - Primary: Failover to the first primary backend, never to a backup
//   - Primary/Backup: Primary when available, round robin across backups otherwise
//
// Strategies only see the candidates they are handed; health filtering
// happens in the loadbalancer package.
package strategy
