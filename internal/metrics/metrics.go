package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GeocodeRequests *prometheus.CounterVec
	RequestSeconds  *prometheus.HistogramVec
	KeysWritten     *prometheus.CounterVec
	Runs            *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		GeocodeRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "homepos_geocode_requests_total",
			Help: "Total number of geocoding requests by outcome.",
		}, []string{"status"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homepos_geocode_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		KeysWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "homepos_config_keys_written_total",
			Help: "Configuration keys written, by key and whether the line was updated or appended.",
		}, []string{"key", "action"}),
		Runs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "homepos_runs_total",
			Help: "Setup runs by result (ok or the failure kind).",
		}, []string{"result"}),
	}
}

// WriteTextfile dumps everything gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
// An empty path disables the export.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
