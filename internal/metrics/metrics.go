// Package metrics exports sensor, lifecycle and cluster activity as
// Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/giantswarm/steward/internal/api"
)

const namespace = "steward"

// Poll results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors. It implements sensor.Observer,
// entity.TransitionObserver, orchestrator.Observer, cluster.Metrics and
// reconciler.Observer.
type Metrics struct {
	polls          *prometheus.CounterVec
	discarded      *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	startDuration  *prometheus.HistogramVec
	clusterMembers *prometheus.GaugeVec
	reconciles     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_polls_total",
			Help:      "Sensor source fetches by sensor and result.",
		}, []string{"sensor", "result"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_samples_discarded_total",
			Help:      "Samples dropped because the transform could not interpret them.",
		}, []string{"sensor"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_transitions_total",
			Help:      "Lifecycle transitions by entity type and target state.",
		}, []string{"type", "state"}),
		startDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_start_duration_seconds",
			Help:      "Duration of start sequences by entity type and failed phase (empty on success).",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"type", "failed_phase"}),
		clusterMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_members",
			Help:      "Current number of members per cluster.",
		}, []string{"cluster"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Cluster definition reconciliations by operation and resulting state.",
		}, []string{"operation", "state"}),
	}

	for _, c := range []prometheus.Collector{m.polls, m.discarded, m.transitions, m.startDuration, m.clusterMembers, m.reconciles} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PollSucceeded implements sensor.Observer.
func (m *Metrics) PollSucceeded(sensor string) {
	m.polls.WithLabelValues(sensor, ResultSuccess).Inc()
}

// PollFailed implements sensor.Observer.
func (m *Metrics) PollFailed(sensor string) {
	m.polls.WithLabelValues(sensor, ResultFailure).Inc()
}

// SampleDiscarded implements sensor.Observer.
func (m *Metrics) SampleDiscarded(sensor string) {
	m.discarded.WithLabelValues(sensor).Inc()
}

// EntityTransitioned implements entity.TransitionObserver.
func (m *Metrics) EntityTransitioned(entityType string, to api.Lifecycle) {
	m.transitions.WithLabelValues(entityType, string(to)).Inc()
}

// StartCompleted implements orchestrator.Observer.
func (m *Metrics) StartCompleted(entityType string, failedPhase string, d time.Duration) {
	m.startDuration.WithLabelValues(entityType, failedPhase).Observe(d.Seconds())
}

// ClusterSizeChanged implements cluster.Metrics.
func (m *Metrics) ClusterSizeChanged(cluster string, size int) {
	m.clusterMembers.WithLabelValues(cluster).Set(float64(size))
}

// ForgetCluster drops the member gauge of a deleted cluster.
func (m *Metrics) ForgetCluster(cluster string) {
	m.clusterMembers.DeleteLabelValues(cluster)
}

// ReconcileCompleted implements reconciler.Observer.
func (m *Metrics) ReconcileCompleted(operation string, state string) {
	m.reconciles.WithLabelValues(operation, state).Inc()
}
