package reconciler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/pkg/logging"
)

const clusterSubsystem = "ClusterReconciler"

// ClusterController creates, resizes and removes clusters by name.
type ClusterController interface {
	// ApplyCluster creates the cluster if it does not exist and scales it to
	// the definition's initial size.
	ApplyCluster(ctx context.Context, def config.ClusterDefinition) error

	// RemoveCluster stops every member and forgets the cluster. Removing an
	// unknown cluster is not an error.
	RemoveCluster(ctx context.Context, name string) error
}

// ClusterReconciler applies cluster definition files. It remembers which
// cluster each file defined so a deleted or renamed file removes the right
// cluster.
type ClusterReconciler struct {
	controller ClusterController
	knownTypes []string

	mu     sync.Mutex
	byFile map[string]string
}

// NewClusterReconciler creates a reconciler. knownTypes restricts member
// types; nil accepts any.
func NewClusterReconciler(controller ClusterController, knownTypes []string) *ClusterReconciler {
	return &ClusterReconciler{
		controller: controller,
		knownTypes: knownTypes,
		byFile:     make(map[string]string),
	}
}

// Reconcile implements Reconciler.
func (r *ClusterReconciler) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	if _, err := os.Stat(req.FilePath); errors.Is(err, os.ErrNotExist) {
		return r.remove(ctx, req.FilePath)
	}

	def, err := config.LoadClusterDefinition(req.FilePath, r.knownTypes)
	if err != nil {
		var fe config.FileError
		return ReconcileResult{Error: err, Permanent: errors.As(err, &fe)}
	}

	r.mu.Lock()
	previous, known := r.byFile[req.FilePath]
	owner := r.ownerLocked(def.Name)
	r.mu.Unlock()

	if owner != "" && owner != req.FilePath {
		return ReconcileResult{
			Error:     fmt.Errorf("cluster %q is already defined in %s", def.Name, owner),
			Permanent: true,
		}
	}

	if known && previous != def.Name {
		logging.Info(clusterSubsystem, "Cluster in %s renamed from %s to %s", req.FilePath, previous, def.Name)
		if result := r.remove(ctx, req.FilePath); result.Error != nil {
			return result
		}
	}

	r.mu.Lock()
	r.byFile[req.FilePath] = def.Name
	r.mu.Unlock()

	if err := r.controller.ApplyCluster(ctx, def); err != nil {
		// Partial scale failures leave ON_FIRE members behind; retrying would
		// keep adding members.
		return ReconcileResult{Error: err, Permanent: api.IsScaleError(err)}
	}

	logging.Info(clusterSubsystem, "Applied cluster %s from %s", def.Name, req.FilePath)
	return ReconcileResult{}
}

func (r *ClusterReconciler) ownerLocked(name string) string {
	for path, n := range r.byFile {
		if n == name {
			return path
		}
	}
	return ""
}

func (r *ClusterReconciler) remove(ctx context.Context, path string) ReconcileResult {
	r.mu.Lock()
	name, ok := r.byFile[path]
	r.mu.Unlock()
	if !ok {
		logging.Debug(clusterSubsystem, "No cluster defined by %s", path)
		return ReconcileResult{}
	}

	if err := r.controller.RemoveCluster(ctx, name); err != nil {
		return ReconcileResult{Error: fmt.Errorf("failed to remove cluster %s: %w", name, err)}
	}

	r.mu.Lock()
	delete(r.byFile, path)
	r.mu.Unlock()

	logging.Info(clusterSubsystem, "Removed cluster %s defined by %s", name, path)
	return ReconcileResult{}
}

// Clusters returns the cluster name defined by each reconciled file.
func (r *ClusterReconciler) Clusters() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.byFile))
	for k, v := range r.byFile {
		out[k] = v
	}
	return out
}
