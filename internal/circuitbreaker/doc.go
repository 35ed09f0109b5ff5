// Package circuitbreaker implements the circuit breaker pattern for backend failover.
//
// A circuit breaker prevents cascading failures by temporarily blocking requests
// to failing backends. It has three states:
//
//   - CLOSED: Normal operation, requests pass through
//   - OPEN: Backend failing, requests blocked
//   - HALF-OPEN: One probe request checks whether the backend recovered
//
// The load balancer drops backends whose breaker is unavailable from the
// candidate list before a strategy runs, so an open primary fails over to the
// next candidate the strategy accepts. Breaker states are published in the
// metrics snapshot next to each backend's role.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second)
//	if registry.Allow(b) {
//	    // Make request...
//	    switch {
//	    case clientGone:
//	        registry.Release(b)
//	    case err != nil:
//	        registry.RecordFailure(b)
//	    default:
//	        registry.RecordSuccess(b)
//	    }
//	}
package circuitbreaker
