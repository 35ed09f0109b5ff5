package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/metrics"
)

const probeTimeout = 5 * time.Second

// HealthCheck probes the backend's /health endpoint right away and then on
// every interval until ctx is cancelled. Only a 200 response counts as
// healthy. Health transitions are logged and reported to collector, which
// may be nil.
func HealthCheck(
	ctx context.Context,
	b *backend.Backend,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	client := &http.Client{
		Timeout: probeTimeout,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		healthy := probe(ctx, client, b)
		if ctx.Err() != nil {
			logger.Info("Health check stopped",
				slog.String("server", b.URL().String()))
			return
		}

		if b.SetHealthy(healthy) {
			report(logger, collector, b, healthy)
		}

		select {
		case <-ctx.Done():
			logger.Info("Health check stopped",
				slog.String("server", b.URL().String()))
			return
		case <-ticker.C:
		}
	}
}

func probe(ctx context.Context, client *http.Client, b *backend.Backend) bool {
	healthURL := b.URL().ResolveReference(&url.URL{Path: "/health"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode == http.StatusOK
}

func report(logger *slog.Logger, collector *metrics.Collector, b *backend.Backend, healthy bool) {
	if healthy {
		logger.Info("Server is back up",
			slog.String("server", b.URL().String()),
			slog.String("role", string(b.Role())))
	} else {
		logger.Warn("Server is down",
			slog.String("server", b.URL().String()),
			slog.String("role", string(b.Role())))
	}

	collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Backend:   b.URL().String(),
		Role:      string(b.Role()),
		Healthy:   healthy,
	})
}
