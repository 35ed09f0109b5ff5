// Demobackend is a small upstream used to try the balancer locally. It
// answers every path with JSON naming itself and its role, and exposes
// /health plus a /toggle endpoint that flips its health so failover can be
// watched by hand.
//
// Usage:
//
//	go run ./cmd/demobackend --port 8081 --name primary-1 --role primary
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/pkg/logger"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		port  int
		name  string
		role  string
		level string
	)

	cmd := &cobra.Command{
		Use:          "demobackend",
		Short:        "Run a demo upstream for the balancer",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.New(level, false, "dev").With(slog.String("backend", name))

			var healthy atomic.Bool
			healthy.Store(true)

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           newMux(log, name, backend.ParseRole(role), &healthy),
				ReadHeaderTimeout: 5 * time.Second,
			}

			log.Info("Demo backend starting", slog.String("addr", srv.Addr), slog.String("role", role))
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().IntVar(&port, "port", 8081, "port to listen on")
	cmd.Flags().StringVar(&name, "name", "backend", "name reported in responses")
	cmd.Flags().StringVar(&role, "role", string(backend.RoleBackup), "primary or backup")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level")

	return cmd
}
