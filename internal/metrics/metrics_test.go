package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/cluster"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/reconciler"
	"github.com/giantswarm/steward/internal/sensor"
)

// Compile-time checks that Metrics plugs into every observer hook.
var (
	_ sensor.Observer           = (*Metrics)(nil)
	_ entity.TransitionObserver = (*Metrics)(nil)
	_ orchestrator.Observer     = (*Metrics)(nil)
	_ cluster.Metrics           = (*Metrics)(nil)
	_ reconciler.Observer       = (*Metrics)(nil)
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.PollSucceeded(sensor.ServiceUp)
	m.PollSucceeded(sensor.ServiceUp)
	m.PollFailed(sensor.ServiceUp)
	m.SampleDiscarded("webapp.reqs.total")
	m.EntityTransitioned("tomcat", api.LifecycleRunning)
	m.StartCompleted("tomcat", "", 3*time.Second)
	m.ClusterSizeChanged("search-1", 3)
	m.ReconcileCompleted("Create", "Synced")
	m.ReconcileCompleted("Create", "Synced")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.polls.WithLabelValues(sensor.ServiceUp, ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues(sensor.ServiceUp, ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discarded.WithLabelValues("webapp.reqs.total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("tomcat", "RUNNING")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.startDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconciles.WithLabelValues("Create", "Synced")))

	expected := `
# HELP steward_cluster_members Current number of members per cluster.
# TYPE steward_cluster_members gauge
steward_cluster_members{cluster="search-1"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "steward_cluster_members"))

	m.ForgetCluster("search-1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.clusterMembers))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
