package main

import (
	"net/http"

	"github.com/angeloszaimis/failover-balancer/internal/handler"
	"github.com/angeloszaimis/failover-balancer/internal/metrics"
)

func setupRouter(loadBalancerHandler *handler.LoadBalancerHandler, metricsCollector *metrics.Collector, metricsPath, strategy string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/", loadBalancerHandler)
	if metricsCollector != nil {
		mux.HandleFunc(metricsPath, metricsCollector.Handler(strategy))
	}

	return mux
}
