// Package loadbalancer narrows the configured backends down to the ones that
// may receive traffic (healthy, not excluded, breaker closed or probing) and
// asks the configured strategy to pick one of them.
package loadbalancer
