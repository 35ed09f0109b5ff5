// Loadtest fires concurrent requests at the balancer and reports how traffic
// was spread over backends, which makes failover visible: stop the primary
// mid-run and the distribution shifts to the backups.
//
// Usage:
//
//	go run ./cmd/loadtest --url http://localhost:8080/ --concurrency 10 --requests 1000
//	go run ./cmd/loadtest --url http://localhost:8080/ --out summary.json
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/failover-balancer/pkg/json"
)

var errFailures = errors.New("some requests failed")

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		opts    options
		timeout time.Duration
		outJSON string
	)

	cmd := &cobra.Command{
		Use:          "loadtest",
		Short:        "Send concurrent requests through the balancer and summarize the backend spread",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: timeout}

			sum, err := runLoad(cmd.Context(), client, opts)
			if err != nil {
				return err
			}
			sum.print(cmd.OutOrStdout())

			if outJSON != "" {
				if err := writeJSON(outJSON, sum); err != nil {
					return errors.Wrap(err, "write summary")
				}
			}

			if sum.Failure > 0 {
				return errFailures
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "http://localhost:8080/", "target URL")
	cmd.Flags().StringVar(&opts.Method, "method", http.MethodGet, "HTTP method")
	cmd.Flags().StringVar(&opts.Body, "body", "", "request body")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.Requests, "requests", 100, "total number of requests")
	cmd.Flags().IntVar(&opts.Clients, "clients", 50, "distinct X-Forwarded-For addresses to spread over")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	cmd.Flags().StringVar(&outJSON, "out", "", "write a JSON summary to this file")

	return cmd
}

func writeJSON(path string, sum *summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
