package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/failover-balancer/config"
	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/circuitbreaker"
	"github.com/angeloszaimis/failover-balancer/internal/handler"
	"github.com/angeloszaimis/failover-balancer/internal/healthcheck"
	"github.com/angeloszaimis/failover-balancer/internal/httpserver"
	"github.com/angeloszaimis/failover-balancer/internal/loadbalancer"
	"github.com/angeloszaimis/failover-balancer/internal/metrics"
	"github.com/angeloszaimis/failover-balancer/internal/strategy"
	"github.com/angeloszaimis/failover-balancer/pkg/logger"
)

var errNoBackends = errors.New("no usable backends configured")

func newRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "balancer",
		Short: "HTTP load balancer with primary/backup failover",
		Long: `balancer proxies HTTP traffic to a pool of backends. Backends are
tagged primary or backup, and the configured strategy decides which healthy
backend serves each request.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfgFile)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	cmd.AddCommand(newStrategiesCommand())

	return cmd
}

func newStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the selection strategies the balancer understands",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range strategy.Names() {
				cmd.Println(name)
			}
		},
	}
}

func run(ctx context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.BufferSize, log)
		collector.Start(ctx)
	}

	backends, err := initializeBackends(ctx, cfg, log, collector)
	if err != nil {
		return errors.Wrap(err, "initialize backends")
	}

	strat, err := strategy.New(cfg.Strategy.Type, cfg.Strategy.VirtualNodes)
	if err != nil {
		return errors.Wrapf(err, "create strategy %q", cfg.Strategy.Type)
	}

	breakers := newBreakers(cfg.CircuitBreaker)
	if collector != nil && breakers != nil {
		collector.WatchBreakers(breakers)
	}
	lb := loadbalancer.NewLoadBalancer(strat, breakers)
	loadBalancerHandler := handler.NewLoadBalancerHandler(log, lb, backends, collector, breakers, cfg.Proxy.MaxRetries)

	router := setupRouter(loadBalancerHandler, collector, cfg.Metrics.Path, cfg.Strategy.Type)

	srv, err := httpserver.New(cfg.Server.Address, router,
		httpserver.WithTimeouts(
			config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
			config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
			60*time.Second,
		),
		httpserver.WithShutdownTimeout(config.Duration(cfg.Server.ShutdownTimeout, 5*time.Second)),
	)
	if err != nil {
		return errors.Wrap(err, "create server")
	}

	log.Info("Load balancer starting",
		slog.String("addr", srv.Addr()),
		slog.String("strategy", cfg.Strategy.Type),
		slog.Int("backends", len(backends)),
		slog.Int("max_retries", cfg.Proxy.MaxRetries))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(srv.Start(), "serve")
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		return errors.Wrap(srv.Shutdown(context.Background()), "shutdown")
	})

	return g.Wait()
}

func newBreakers(cfg config.CircuitBreakerConfig) *circuitbreaker.Registry {
	if !cfg.Enabled {
		return nil
	}
	return circuitbreaker.NewRegistry(cfg.Threshold, config.Duration(cfg.ResetTimeout, 30*time.Second))
}

func initializeBackends(ctx context.Context, cfg *config.Config, log *slog.Logger, collector *metrics.Collector) ([]*backend.Backend, error) {
	healthCheckInterval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		return nil, errors.Wrap(err, "health check interval")
	}

	var backends []*backend.Backend

	for _, bc := range cfg.Backends {
		u, err := url.Parse(bc.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			log.Error("Skipping backend with invalid URL", slog.String("url", bc.URL))
			continue
		}

		weight := bc.Weight
		if weight < 1 {
			weight = 1
		}

		b := backend.New(u, weight, backend.ParseRole(bc.Role))
		backends = append(backends, b)
		go healthcheck.HealthCheck(ctx, b, healthCheckInterval, log, collector)
	}

	if len(backends) == 0 {
		return nil, errNoBackends
	}

	return backends, nil
}
