// Package metrics turns run reports into Prometheus metrics for the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Travis-Britz/ddns/v2"
)

// Recorder accumulates metrics across runs of one process.
type Recorder struct {
	reg *prometheus.Registry

	// Records counts reconciled records by outcome
	Records *prometheus.CounterVec

	// LastRun is the unix time the last run finished
	LastRun prometheus.Gauge

	// RunDuration is how long the last run took
	RunDuration prometheus.Gauge

	// AddressResolved is 1 when the family resolved in the last run and 0 when it failed.
	// Families no enabled domain needs are not resolved and keep their previous value.
	AddressResolved *prometheus.GaugeVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ddns_records_total",
			Help: "Total number of reconciled records by provider, record type and action",
		}, []string{"provider", "record_type", "action"}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "ddns_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "ddns_last_run_duration_seconds",
			Help: "Duration of the last run",
		}),
		AddressResolved: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ddns_address_resolved",
			Help: "Binary indicator of address resolution in the last run (1 = resolved, 0 = failed)",
		}, []string{"family"}),
	}
}

// Observe records one run.
func (r *Recorder) Observe(rep ddns.Report) {
	for _, o := range rep.Outcomes {
		r.Records.WithLabelValues(o.Provider, string(o.Type), string(o.Action)).Inc()
	}
	r.LastRun.Set(float64(rep.Finished.Unix()) + float64(rep.Finished.Nanosecond())/1e9)
	r.RunDuration.Set(rep.Finished.Sub(rep.Started).Seconds())

	for _, t := range []ddns.RecordType{ddns.TypeA, ddns.TypeAAAA} {
		if !rep.Addresses.Attempted(t) {
			continue
		}
		if _, err := rep.Addresses.For(t); err != nil {
			r.AddressResolved.WithLabelValues(t.Family()).Set(0)
			continue
		}
		r.AddressResolved.WithLabelValues(t.Family()).Set(1)
	}
}

// WriteFile atomically writes every metric to path in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

// Registry exposes the underlying registry, e.g. for serving.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}
