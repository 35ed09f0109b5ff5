package backend

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Role classifies a backend for failover selection.
type Role string

const (
	RolePrimary Role = "primary"
	RoleBackup  Role = "backup"
)

// ParseRole maps a configured role name to a Role. Anything other than
// "primary" (case-insensitive) is a backup.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RolePrimary)) {
		return RolePrimary
	}
	return RoleBackup
}

// FailureRecorder is implemented by response writers that want upstream
// transport errors reported to them instead of a 502 being written.
type FailureRecorder interface {
	RecordUpstreamFailure(err error)
}

// Backend represents a backend server with health status, connection tracking,
// response time monitoring and a failover role.
type Backend struct {
	url               *url.URL
	proxy             *httputil.ReverseProxy
	weight            int
	role              Role
	mutex             sync.Mutex
	isHealthy         bool
	activeConnections int
	ewmaResponseTime  time.Duration
	hasEWMA           bool
}

const ewmaAlpha = 0.2

// ReverseProxy returns the HTTP reverse proxy for this backend.
func (b *Backend) ReverseProxy() *httputil.ReverseProxy {
	return b.proxy
}

// IncrementConn increments the active connection count.
func (b *Backend) IncrementConn() {
	b.mutex.Lock()
	b.activeConnections++
	b.mutex.Unlock()
}

// DecrementConn decrements the active connection count.
func (b *Backend) DecrementConn() {
	b.mutex.Lock()
	if b.activeConnections > 0 {
		b.activeConnections--
	}
	b.mutex.Unlock()
}

// ActiveConnections returns the current number of active connections.
func (b *Backend) ActiveConnections() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.activeConnections
}

// URL returns the backend server URL.
func (b *Backend) URL() *url.URL {
	return b.url
}

func (b *Backend) Weight() int {
	return b.weight
}

func (b *Backend) Role() Role {
	return b.role
}

// IsPrimary reports whether the backend is configured as a primary.
// The role is fixed at construction, so this is safe to call from any goroutine.
func (b *Backend) IsPrimary() bool {
	return b.role == RolePrimary
}

// IsHealthy returns true if the backend is currently healthy.
func (b *Backend) IsHealthy() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isHealthy
}

// SetHealthy updates the backend's health status.
// Returns true if the status changed, false if it was already in that state.
func (b *Backend) SetHealthy(healthy bool) (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.isHealthy == healthy {
		return false
	}

	b.isHealthy = healthy
	return true
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (b *Backend) RecordResponse(duration time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.hasEWMA {
		b.ewmaResponseTime = duration
		b.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	b.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(b.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (b *Backend) EWMATime() time.Duration {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.hasEWMA {
		return 0
	}

	return b.ewmaResponseTime
}

func proxyErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if fr, ok := w.(FailureRecorder); ok {
		fr.RecordUpstreamFailure(err)
		return
	}
	w.WriteHeader(http.StatusBadGateway)
}

// New creates a new Backend with the given URL, weight and role.
// The backend starts unhealthy until a health probe succeeds.
func New(url *url.URL, weight int, role Role) *Backend {
	proxy := httputil.NewSingleHostReverseProxy(url)
	proxy.ErrorHandler = proxyErrorHandler

	return &Backend{
		url:    url,
		proxy:  proxy,
		weight: weight,
		role:   role,
	}
}
