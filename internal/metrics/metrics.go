// Package metrics exposes run counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_fetch_attempts_total", Help: "Provider calls by window label and result"},
		[]string{"window", "result"},
	)
	SyncOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_sync_outcomes_total", Help: "Per-instrument sync outcomes"},
		[]string{"outcome"},
	)
	SpikeHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_spike_hits_total", Help: "Detected spike events by rule and mode"},
		[]string{"rule", "mode"},
	)
	InstrumentsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_instruments_skipped_total", Help: "Instruments left out of analysis"},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(FetchAttempts, SyncOutcomes, SpikeHits, InstrumentsSkipped)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
