// Package metrics exposes persistence counters on the standard
// Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts persistence activity. A nil *Metrics is valid and
// records nothing, so tests can pass nil without touching the global
// registry twice.
type Metrics struct {
	localSaves  prometheus.Counter
	remoteSaves *prometheus.CounterVec
	remoteLoads *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		localSaves: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eltimer_local_saves_total",
			Help: "State blobs written to the local database.",
		}),
		remoteSaves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eltimer_remote_saves_total",
			Help: "State blobs mirrored to the remote database, by status.",
		}, []string{"status"}),
		remoteLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eltimer_remote_loads_total",
			Help: "Remote state reads at startup, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) LocalSave() {
	if m == nil {
		return
	}
	m.localSaves.Inc()
}

func (m *Metrics) RemoteSave(status string) {
	if m == nil {
		return
	}
	m.remoteSaves.WithLabelValues(status).Inc()
}

func (m *Metrics) RemoteLoad(outcome string) {
	if m == nil {
		return
	}
	m.remoteLoads.WithLabelValues(outcome).Inc()
}
