// Package handler implements the main HTTP request handler for the load balancer.
// It coordinates strategy selection, backend routing, retries on another
// backend after upstream failures, and circuit breaker bookkeeping.
package handler
