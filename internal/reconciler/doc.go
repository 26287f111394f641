// Package reconciler keeps running clusters in line with the cluster
// definition files of the configuration directory.
//
// # Architecture
//
//   - FilesystemDetector: watches clusters/ with fsnotify and emits debounced
//     change events per file
//   - Manager: turns change events into requests on a deduplicating work
//     queue and runs them through the Reconciler on a small worker pool,
//     retrying failures with exponential backoff
//   - ClusterReconciler: loads the definition behind a request and applies
//     it through a ClusterController
//
// A created file brings up a new cluster at its initialSize, an edited file
// resizes the cluster, and a removed file stops every member and forgets the
// cluster.
//
// Example usage:
//
//	manager := reconciler.NewManager(reconciler.ManagerConfig{ConfigPath: dir},
//	    reconciler.NewClusterReconciler(controller, catalog.Types()))
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
//
// Requests are keyed by file path, so rapid edits of one file collapse into a
// single reconciliation while different files proceed in parallel.
package reconciler
