package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/circuitbreaker"
	"github.com/angeloszaimis/failover-balancer/internal/loadbalancer"
	"github.com/angeloszaimis/failover-balancer/internal/metrics"
	"github.com/angeloszaimis/failover-balancer/internal/strategy"
)

type LoadBalancerHandler struct {
	logger           *slog.Logger
	balancer         *loadbalancer.LoadBalancer
	backends         []*backend.Backend
	metricsCollector *metrics.Collector
	breakers         *circuitbreaker.Registry
	maxRetries       int
}

// attemptRecorder tracks the outcome of a single proxied attempt. Upstream
// transport errors are captured instead of written so the request can be
// retried against another backend.
type attemptRecorder struct {
	http.ResponseWriter
	statusCode  int
	upstreamErr error
}

func (lb *LoadBalancerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	lb.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	body, err := readBody(r)
	if err != nil {
		lb.logger.Warn("Failed to read request body", slog.String("client", clientIP), slog.Any("err", err))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	var tried []*backend.Backend

	for attempt := 0; attempt <= lb.maxRetries; attempt++ {
		if r.Context().Err() != nil {
			lb.logger.Debug("Client went away before an attempt", slog.String("client", clientIP))
			return
		}

		nextServer, err := lb.reserve(clientIP, tried)
		if err != nil {
			lb.reject(w, clientIP, err, len(tried) > 0)
			return
		}

		switch lb.forward(w, r, body, clientIP, nextServer) {
		case attemptServed, attemptAborted:
			return
		}

		tried = append(tried, nextServer)
	}

	lb.logger.Error("All attempts failed",
		slog.String("client", clientIP),
		slog.Int("attempts", len(tried)))
	http.Error(w, "Upstream unavailable", http.StatusBadGateway)
}

func (lb *LoadBalancerHandler) reserve(clientIP string, tried []*backend.Backend) (*backend.Backend, error) {
	if _, ok := lb.balancer.LoadBalancerStrategy().(strategy.Keyed); ok {
		return lb.balancer.GetAndReserveServerWithKey(lb.backends, clientIP, tried...)
	}
	return lb.balancer.GetAndReserveServer(lb.backends, tried...)
}

func (lb *LoadBalancerHandler) reject(w http.ResponseWriter, clientIP string, err error, retried bool) {
	lb.metricsCollector.Emit(metrics.MetricEvent{
		Type:      metrics.EventNoSelection,
		Timestamp: time.Now(),
	})

	if retried {
		lb.logger.Error("No backend left to retry", slog.String("client", clientIP), slog.Any("err", err))
		http.Error(w, "Upstream unavailable", http.StatusBadGateway)
		return
	}

	lb.logger.Warn("No backend available", slog.String("client", clientIP), slog.Any("err", err))
	http.Error(w, "No healthy server available", http.StatusServiceUnavailable)
}

type attemptOutcome int

const (
	attemptServed attemptOutcome = iota
	attemptFailed
	// attemptAborted means the client cancelled; the backend is not blamed
	// and no retry is made.
	attemptAborted
)

// forward proxies one attempt. Selections are counted per attempt; a request
// is counted once, against the backend that answered it.
func (lb *LoadBalancerHandler) forward(w http.ResponseWriter, r *http.Request, body []byte, clientIP string, nextServer *backend.Backend) attemptOutcome {
	defer nextServer.DecrementConn()

	target := nextServer.URL().String()
	role := string(nextServer.Role())

	lb.metricsCollector.Emit(metrics.MetricEvent{
		Type:      metrics.EventBackendSelected,
		Timestamp: time.Now(),
		Backend:   target,
		Role:      role,
	})

	lb.logger.Info("Forwarding to backend",
		slog.String("client", clientIP),
		slog.String("backend", target),
		slog.String("role", role))

	w.Header().Set("X-Backend-Server", target)

	req := r.Clone(r.Context())
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	start := time.Now()
	rec := &attemptRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	nextServer.ReverseProxy().ServeHTTP(rec, req)
	duration := time.Since(start)

	if rec.upstreamErr != nil {
		w.Header().Del("X-Backend-Server")

		if r.Context().Err() != nil || errors.Is(rec.upstreamErr, context.Canceled) {
			lb.breakers.Release(nextServer)
			lb.logger.Info("Client went away during attempt",
				slog.String("client", clientIP),
				slog.String("backend", target))
			return attemptAborted
		}

		lb.breakers.RecordFailure(nextServer)
		lb.metricsCollector.Emit(metrics.MetricEvent{
			Type:      metrics.EventUpstreamFailed,
			Timestamp: time.Now(),
			Backend:   target,
			Role:      role,
		})
		lb.logger.Warn("Backend request failed",
			slog.String("backend", target),
			slog.Any("err", rec.upstreamErr))
		return attemptFailed
	}

	if rec.statusCode >= http.StatusInternalServerError {
		lb.breakers.RecordFailure(nextServer)
	} else {
		lb.breakers.RecordSuccess(nextServer)
	}

	lb.metricsCollector.Emit(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Backend:   target,
		Role:      role,
	})
	lb.metricsCollector.Emit(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Backend:    target,
		Role:       role,
		Duration:   duration,
		StatusCode: rec.statusCode,
	})
	nextServer.RecordResponse(duration)

	return attemptServed
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()

	return io.ReadAll(r.Body)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (r *attemptRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *attemptRecorder) RecordUpstreamFailure(err error) {
	r.upstreamErr = err
}

// Flush keeps streaming responses working through the recorder.
func (r *attemptRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// NewLoadBalancerHandler builds the proxying handler. collector and breakers
// may be nil. A failed upstream attempt is retried on another backend up to
// maxRetries times.
func NewLoadBalancerHandler(
	logger *slog.Logger,
	lb *loadbalancer.LoadBalancer,
	backends []*backend.Backend,
	collector *metrics.Collector,
	breakers *circuitbreaker.Registry,
	maxRetries int,
) *LoadBalancerHandler {
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &LoadBalancerHandler{
		logger:           logger,
		balancer:         lb,
		backends:         backends,
		metricsCollector: collector,
		breakers:         breakers,
		maxRetries:       maxRetries,
	}
}
