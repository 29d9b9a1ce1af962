package monitoring

import (
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
)

// NewHealth builds the liveness and readiness handler. ready reports
// whether the polling loop is keeping up.
func NewHealth(ready healthcheck.Check) healthcheck.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(100))
	if ready != nil {
		health.AddReadinessCheck("poll-loop", ready)
	}
	return health
}

// NewServer serves /metrics, /live and /ready on addr.
func NewServer(addr string, metrics *Metrics, health healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/live", health)
	mux.Handle("/ready", health)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
