package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/steward/internal/reconciler"
	"github.com/giantswarm/steward/pkg/logging"
)

const serveSubsystem = "Serve"

// ShutdownTimeout bounds stopping every cluster on shutdown.
var ShutdownTimeout = 5 * time.Minute

// sdNotify is replaced in tests.
var sdNotify = daemon.SdNotify

// runServe reconciles cluster definitions until ctx ends or SIGINT/SIGTERM
// arrives, then stops every cluster.
func runServe(ctx context.Context, cfg *Config, s *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := startMetricsServer(cfg.Steward.Metrics.Address, s.Registry)

	if err := s.Reconciler.Start(ctx); err != nil {
		shutdownMetricsServer(metricsSrv)
		return err
	}

	go func() {
		if err := waitForInitialSync(ctx, s.Reconciler, 100*time.Millisecond); err != nil {
			return
		}
		logging.Info(serveSubsystem, "Initial cluster definitions reconciled, serving clusters %v", s.Clusters.Names())
		notify(daemon.SdNotifyReady)
	}()

	<-ctx.Done()
	logging.Info(serveSubsystem, "Shutting down")
	notify(daemon.SdNotifyStopping)

	if err := s.Reconciler.Stop(); err != nil {
		logging.Error(serveSubsystem, err, "Failed to stop reconciler")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := s.Clusters.StopAll(shutdownCtx)
	if err != nil {
		logging.Error(serveSubsystem, err, "Some clusters did not stop cleanly")
	}

	shutdownMetricsServer(metricsSrv)
	return err
}

// waitForInitialSync returns once no definition is pending or being
// reconciled.
func waitForInitialSync(ctx context.Context, m *reconciler.Manager, interval time.Duration) error {
	return wait.PollUntilContextCancel(ctx, interval, true, func(context.Context) (bool, error) {
		for _, st := range m.GetAllStatuses() {
			if st.State == reconciler.StatePending || st.State == reconciler.StateReconciling {
				return false, nil
			}
		}
		return true, nil
	})
}

func notify(state string) {
	sent, err := sdNotify(false, state)
	if err != nil {
		logging.Warn(serveSubsystem, "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug(serveSubsystem, "Notified systemd: %s", state)
	}
}

// metricsHandler serves the registry and a liveness probe.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// startMetricsServer returns nil when addr is empty.
func startMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(serveSubsystem, err, "Metrics server on %s exited", addr)
		}
	}()
	logging.Info(serveSubsystem, "Serving metrics on %s/metrics", addr)
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn(serveSubsystem, "Metrics server shutdown: %v", err)
	}
}
