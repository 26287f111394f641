package reconciler

import (
	"context"
	"time"
)

// ChangeOperation is what happened to a definition file.
type ChangeOperation string

const (
	OperationCreate ChangeOperation = "Create"
	OperationUpdate ChangeOperation = "Update"
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource tells watcher events apart from requests made through the
// Manager API.
type ChangeSource string

const (
	SourceFilesystem ChangeSource = "Filesystem"
	SourceManual     ChangeSource = "Manual"
)

// ChangeEvent is one observed change of a cluster definition file.
type ChangeEvent struct {
	// Name is the file name without extension.
	Name      string
	FilePath  string
	Operation ChangeOperation
	Source    ChangeSource
	Timestamp time.Time
}

// ChangeDetector feeds ChangeEvents to the Manager.
type ChangeDetector interface {
	Start(ctx context.Context, changes chan<- ChangeEvent) error
	Stop() error
}

// ReconcileRequest asks for the definition file at FilePath to be applied.
type ReconcileRequest struct {
	FilePath  string
	Operation ChangeOperation
	// Attempt starts at 1 and grows with every retry.
	Attempt int
	// LastError is the error of the previous attempt.
	LastError error
}

// ReconcileResult is the outcome of one Reconcile call.
type ReconcileResult struct {
	Error error
	// Permanent errors are not retried until the file changes again.
	Permanent bool
	// Requeue asks for another pass after RequeueAfter, or after the
	// initial backoff when RequeueAfter is zero.
	Requeue      bool
	RequeueAfter time.Duration
}

// Reconciler applies a definition file. Applying the same content twice
// must leave the same clusters behind.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult
}

// Observer is notified of every finished reconciliation.
type Observer interface {
	ReconcileCompleted(operation string, state string)
}

// ManagerConfig configures a Manager. Zero values take the defaults noted
// per field.
type ManagerConfig struct {
	// ConfigPath is the configuration directory; definitions live in its
	// clusters/ subdirectory.
	ConfigPath string

	WorkerCount      int           // 2
	MaxRetries       int           // 5
	InitialBackoff   time.Duration // 1s, doubled per attempt
	MaxBackoff       time.Duration // 5m
	DebounceInterval time.Duration // 500ms

	// ReconcileTimeout bounds one Reconcile call. Scaling waits for member
	// readiness, hence the 30 minute default.
	ReconcileTimeout time.Duration

	Observer Observer
}

// ReconcileState is where a definition file stands.
type ReconcileState string

const (
	StatePending     ReconcileState = "Pending"
	StateReconciling ReconcileState = "Reconciling"
	StateSynced      ReconcileState = "Synced"
	// StateError is a failure that will be retried.
	StateError ReconcileState = "Error"
	// StateFailed is a failure that waits for the file to change.
	StateFailed ReconcileState = "Failed"
)

// ReconcileStatus is the last known state of one definition file.
type ReconcileStatus struct {
	FilePath          string
	State             ReconcileState
	LastReconcileTime *time.Time
	LastError         string
	RetryCount        int
}
