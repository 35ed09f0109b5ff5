package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/circuitbreaker"
	"github.com/angeloszaimis/failover-balancer/internal/handler"
	"github.com/angeloszaimis/failover-balancer/internal/loadbalancer"
	"github.com/angeloszaimis/failover-balancer/internal/metrics"
	"github.com/angeloszaimis/failover-balancer/internal/strategy"
)

func echoServer(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(name + ":" + string(body)))
	}))
}

var _ = Describe("Handler", func() {
	var (
		h        *handler.LoadBalancerHandler
		lb       *loadbalancer.LoadBalancer
		backends []*backend.Backend
		primary  *httptest.Server
		standby  *httptest.Server
		log      *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		primary = echoServer("primary")
		standby = echoServer("backup")

		backends = []*backend.Backend{
			backend.New(mustParseURL(standby.URL), 1, backend.RoleBackup),
			backend.New(mustParseURL(primary.URL), 1, backend.RolePrimary),
		}

		for _, b := range backends {
			b.SetHealthy(true)
		}

		lb = loadbalancer.NewLoadBalancer(strategy.NewPrimaryBackupStrategy(), nil)
		h = handler.NewLoadBalancerHandler(log, lb, backends, nil, nil, 2)
	})

	AfterEach(func() {
		primary.Close()
		standby.Close()
	})

	Describe("NewLoadBalancerHandler", func() {
		It("should create a handler", func() {
			Expect(h).NotTo(BeNil())
		})
	})

	Describe("ServeHTTP", func() {
		It("should proxy request to the primary", func() {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(HavePrefix("primary:"))
			Expect(w.Header().Get("X-Backend-Server")).To(Equal(primary.URL))
		})

		It("should fail over to the backup when the primary is unhealthy", func() {
			backends[1].SetHealthy(false)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(HavePrefix("backup:"))
		})

		It("should retry on the backup with the same body when the primary is unreachable", func() {
			primary.Close()

			req := httptest.NewRequest(http.MethodPost, "/courses", strings.NewReader(`{"title":"go"}`))
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal(`backup:{"title":"go"}`))
			Expect(backends[1].ActiveConnections()).To(Equal(0))
			Expect(backends[0].ActiveConnections()).To(Equal(0))
		})

		Context("with no healthy backends", func() {
			BeforeEach(func() {
				for _, b := range backends {
					b.SetHealthy(false)
				}
			})

			It("should return 503 Service Unavailable", func() {
				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				w := httptest.NewRecorder()

				h.ServeHTTP(w, req)

				Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			})
		})

		Context("with the primary-only strategy", func() {
			BeforeEach(func() {
				lb = loadbalancer.NewLoadBalancer(strategy.NewPrimaryStrategy(), nil)
				h = handler.NewLoadBalancerHandler(log, lb, backends, nil, nil, 2)
			})

			It("should return 503 when only backups are healthy", func() {
				backends[1].SetHealthy(false)

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

				Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			})

			It("should return 502 when the primary fails and no other primary exists", func() {
				primary.Close()

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

				Expect(w.Code).To(Equal(http.StatusBadGateway))
			})
		})

		Context("with retries disabled", func() {
			It("should return 502 after a single failed attempt", func() {
				h = handler.NewLoadBalancerHandler(log, lb, backends, nil, nil, 0)
				primary.Close()

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

				Expect(w.Code).To(Equal(http.StatusBadGateway))
			})
		})

		Context("with circuit breakers", func() {
			var breakers *circuitbreaker.Registry

			BeforeEach(func() {
				breakers = circuitbreaker.NewRegistry(1, time.Hour)
				lb = loadbalancer.NewLoadBalancer(strategy.NewPrimaryBackupStrategy(), breakers)
				h = handler.NewLoadBalancerHandler(log, lb, backends, nil, breakers, 1)
			})

			It("should open the primary breaker after an upstream failure", func() {
				primary.Close()

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

				Expect(w.Code).To(Equal(http.StatusOK))
				Expect(breakers.Stats()[backends[1].URL().String()]).To(Equal(circuitbreaker.StateOpen))
			})

			It("should keep routing to the backup while the primary breaker is open", func() {
				breakers.RecordFailure(backends[1])

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

				Expect(w.Body.String()).To(HavePrefix("backup:"))
			})
		})

		Context("when the client goes away", func() {
			var (
				breakers   *circuitbreaker.Registry
				slow       *httptest.Server
				backupHits atomic.Int64
			)

			BeforeEach(func() {
				backupHits.Store(0)
				slow = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-time.After(5 * time.Second):
					case <-r.Context().Done():
					}
				}))
				counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					backupHits.Add(1)
				}))
				DeferCleanup(counting.Close)

				backends = []*backend.Backend{
					backend.New(mustParseURL(counting.URL), 1, backend.RoleBackup),
					backend.New(mustParseURL(slow.URL), 1, backend.RolePrimary),
				}
				for _, b := range backends {
					b.SetHealthy(true)
				}

				breakers = circuitbreaker.NewRegistry(1, time.Hour)
				lb = loadbalancer.NewLoadBalancer(strategy.NewPrimaryBackupStrategy(), breakers)
				h = handler.NewLoadBalancerHandler(log, lb, backends, nil, breakers, 2)
			})

			AfterEach(func() {
				slow.Close()
			})

			It("should neither blame the backend nor retry elsewhere", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx))

				Expect(backupHits.Load()).To(BeZero())
				Expect(breakers.Stats()).To(HaveKeyWithValue(slow.URL, circuitbreaker.StateClosed))
				Expect(breakers.Stats()).To(HaveEach(circuitbreaker.StateClosed))
				Expect(backends[1].ActiveConnections()).To(Equal(0))
			})

			It("should keep routing to the primary afterwards", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx))

				Expect(breakers.Available(backends[1])).To(BeTrue())
				Expect(backupHits.Load()).To(BeZero())
			})
		})

		Context("with a metrics collector", func() {
			var collector *metrics.Collector

			BeforeEach(func() {
				ctx, cancel := context.WithCancel(context.Background())
				DeferCleanup(cancel)

				collector = metrics.NewCollector(100, log)
				collector.Start(ctx)
				h = handler.NewLoadBalancerHandler(log, lb, backends, collector, nil, 2)
			})

			It("should count a retried request once", func() {
				primary.Close()

				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
				Expect(w.Code).To(Equal(http.StatusOK))

				Eventually(func() int64 {
					return collector.Snapshot(strategy.PrimaryBackup).TotalRequests
				}).Should(Equal(int64(1)))

				snap := collector.Snapshot(strategy.PrimaryBackup)
				failed := snap.Backends[backends[1].URL().String()]
				Expect(failed.Selections).To(Equal(int64(1)))
				Expect(failed.Failures).To(Equal(int64(1)))
				Expect(failed.Requests).To(BeZero())
				Expect(snap.Backends[backends[0].URL().String()].Requests).To(Equal(int64(1)))
			})
		})
	})
})
