package metrics

import (
	"net/http"

	"github.com/angeloszaimis/failover-balancer/pkg/json"
)

// Handler serves the current snapshot as JSON, labelled with strategy.
func (c *Collector) Handler(strategy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(c.Snapshot(strategy))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
