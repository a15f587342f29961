// Package metrics collects run metrics and writes them in the Prometheus
// textfile format for node_exporter to pick up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rewired-gh/putscout/internal/models"
)

// Recorder holds the metrics of a single run.
type Recorder struct {
	registry *prometheus.Registry

	ChainOptions   *prometheus.CounterVec
	Candidates     *prometheus.CounterVec
	Selected       prometheus.Gauge
	Placements     *prometheus.CounterVec
	ExpectedProfit prometheus.Gauge
	RunDuration    prometheus.Gauge
	LastRun        prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ChainOptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "putscout_chain_options_total", Help: "Options listed in fetched chains"},
			[]string{"stock"},
		),
		Candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "putscout_candidates_total", Help: "Options passing the strike, expiry and dip filters with a usable margin"},
			[]string{"stock"},
		),
		Selected: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "putscout_options_of_interest", Help: "Ranked options above the profit threshold"},
		),
		Placements: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "putscout_placements_total", Help: "Orders and GTT triggers placed"},
			[]string{"kind"},
		),
		ExpectedProfit: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "putscout_expected_profit", Help: "Book PnL if all short options expire worthless"},
		),
		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "putscout_run_duration_seconds", Help: "Wall time of the last run"},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "putscout_last_run_timestamp_seconds", Help: "Unix time the last run finished"},
		),
	}
	r.registry.MustRegister(r.ChainOptions, r.Candidates, r.Selected, r.Placements,
		r.ExpectedProfit, r.RunDuration, r.LastRun)
	return r
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveStock records the chain size and candidate count of one stock.
func (r *Recorder) ObserveStock(ticker string, chainSize, candidates int) {
	r.ChainOptions.WithLabelValues(ticker).Add(float64(chainSize))
	r.Candidates.WithLabelValues(ticker).Add(float64(candidates))
}

// ObservePlacements counts placements by kind.
func (r *Recorder) ObservePlacements(placements []models.Placement) {
	for _, p := range placements {
		r.Placements.WithLabelValues(p.Kind).Inc()
	}
}

// Finish stamps the run duration and completion time.
func (r *Recorder) Finish(started, finished time.Time) {
	r.RunDuration.Set(finished.Sub(started).Seconds())
	r.LastRun.Set(float64(finished.Unix()))
}

// Write dumps the registry to path. An empty path disables the dump.
func (r *Recorder) Write(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
