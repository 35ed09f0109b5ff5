package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	unknownBackend = "(unknown)"
	maxReplyBytes  = 64 << 10
)

type options struct {
	URL         string
	Method      string
	Body        string
	Concurrency int
	Requests    int
	Clients     int
}

type backendStats struct {
	Total     int     `json:"total"`
	Success   int     `json:"success"`
	Failure   int     `json:"failure"`
	P50Millis float64 `json:"p50_ms"`
	P99Millis float64 `json:"p99_ms"`
	latencies []time.Duration
}

type summary struct {
	Target      string                   `json:"target"`
	Total       int                      `json:"total"`
	Success     int                      `json:"success"`
	Failure     int                      `json:"failure"`
	DurationMS  int64                    `json:"duration_ms"`
	Throughput  float64                  `json:"throughput_rps"`
	StatusCodes map[int]int              `json:"status_codes"`
	Roles       map[string]int           `json:"roles"`
	Backends    map[string]*backendStats `json:"backends"`
}

type result struct {
	backend  string
	role     string
	status   int
	duration time.Duration
	err      error
}

// runLoad sends opts.Requests requests from opts.Concurrency workers and
// tallies them by the X-Backend-Server header the balancer sets, and by the
// role field when the upstream replies with demobackend JSON.
func runLoad(ctx context.Context, client *http.Client, opts options) (*summary, error) {
	if opts.Requests < 1 || opts.Concurrency < 1 {
		return nil, errors.New("requests and concurrency must be positive")
	}
	if opts.Clients < 1 {
		opts.Clients = 1
	}

	jobs := make(chan int)
	results := make(chan result, opts.Concurrency)

	var wg sync.WaitGroup
	for range opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- send(ctx, client, opts, idx)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range opts.Requests {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	start := time.Now()
	sum := &summary{
		Target:      opts.URL,
		StatusCodes: make(map[int]int),
		Roles:       make(map[string]int),
		Backends:    make(map[string]*backendStats),
	}
	for r := range results {
		sum.add(r)
	}

	elapsed := time.Since(start)
	sum.DurationMS = elapsed.Milliseconds()
	if elapsed > 0 {
		sum.Throughput = float64(sum.Total) / elapsed.Seconds()
	}
	for _, bs := range sum.Backends {
		bs.finish()
	}

	return sum, nil
}

func send(ctx context.Context, client *http.Client, opts options, idx int) result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, strings.NewReader(opts.Body))
	if err != nil {
		return result{backend: unknownBackend, err: err}
	}
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.168.1.%d", idx%opts.Clients+1))

	resp, err := client.Do(req)
	if err != nil {
		return result{backend: unknownBackend, duration: time.Since(start), err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))

	b := resp.Header.Get("X-Backend-Server")
	if b == "" {
		b = unknownBackend
	}

	return result{
		backend:  b,
		role:     gjson.GetBytes(body, "role").String(),
		status:   resp.StatusCode,
		duration: time.Since(start),
	}
}

func (s *summary) add(r result) {
	s.Total++

	bs, ok := s.Backends[r.backend]
	if !ok {
		bs = &backendStats{}
		s.Backends[r.backend] = bs
	}
	bs.Total++
	bs.latencies = append(bs.latencies, r.duration)

	if r.err == nil {
		s.StatusCodes[r.status]++
	}
	if r.role != "" {
		s.Roles[r.role]++
	}
	if r.err == nil && r.status >= 200 && r.status < 300 {
		s.Success++
		bs.Success++
		return
	}
	s.Failure++
	bs.Failure++
}

func (bs *backendStats) finish() {
	if len(bs.latencies) == 0 {
		return
	}
	slices.Sort(bs.latencies)
	pick := func(p float64) float64 {
		d := bs.latencies[int(float64(len(bs.latencies)-1)*p)]
		return float64(d.Microseconds()) / 1000
	}
	bs.P50Millis = pick(0.50)
	bs.P99Millis = pick(0.99)
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintln(w, "--- Load Test Summary ---")
	fmt.Fprintf(w, "Target: %s\n", s.Target)
	fmt.Fprintf(w, "Total: %d  Success: %d  Failure: %d\n", s.Total, s.Success, s.Failure)
	fmt.Fprintf(w, "Duration: %dms  Throughput: %.2f req/s\n", s.DurationMS, s.Throughput)

	fmt.Fprintln(w, "\nStatus codes:")
	codes := make([]int, 0, len(s.StatusCodes))
	for c := range s.StatusCodes {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "  %d -> %d\n", c, s.StatusCodes[c])
	}

	if len(s.Roles) > 0 {
		fmt.Fprintln(w, "\nRoles:")
		roles := make([]string, 0, len(s.Roles))
		for r := range s.Roles {
			roles = append(roles, r)
		}
		slices.Sort(roles)
		for _, r := range roles {
			fmt.Fprintf(w, "  %s -> %d\n", r, s.Roles[r])
		}
	}

	fmt.Fprintln(w, "\nBackend distribution:")
	names := make([]string, 0, len(s.Backends))
	for n := range s.Backends {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		bs := s.Backends[n]
		fmt.Fprintf(w, "  %s -> total=%d success=%d failure=%d p50=%.2fms p99=%.2fms\n",
			n, bs.Total, bs.Success, bs.Failure, bs.P50Millis, bs.P99Millis)
	}
}
