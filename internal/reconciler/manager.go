package reconciler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/pkg/logging"
)

const managerSubsystem = "ReconcileManager"

// Manager turns changes of cluster definition files into Reconcile calls.
// A worker pool drains a FileQueue; failed files are retried with
// exponential backoff until MaxRetries or a permanent error.
type Manager struct {
	config     ManagerConfig
	detector   ChangeDetector
	reconciler Reconciler
	queue      *FileQueue
	changes    chan ChangeEvent

	mu       sync.RWMutex
	statuses map[string]*ReconcileStatus
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager creates a new reconciliation manager.
func NewManager(cfg ManagerConfig, reconciler Reconciler) *Manager {
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 500 * time.Millisecond
	}
	if cfg.ReconcileTimeout == 0 {
		cfg.ReconcileTimeout = 30 * time.Minute
	}

	return &Manager{
		config:     cfg,
		reconciler: reconciler,
		detector:   NewFilesystemDetector(cfg.ConfigPath, cfg.DebounceInterval),
		queue:      NewFileQueue(),
		statuses:   make(map[string]*ReconcileStatus),
		changes:    make(chan ChangeEvent, 100),
	}
}

// Start begins watching and processing. Definitions already present are
// queued as creates so the initial state is reconciled too.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.mu.Unlock()

	if err := m.detector.Start(m.ctx, m.changes); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.cancel()
		return fmt.Errorf("failed to start change detector: %w", err)
	}

	m.wg.Add(1)
	go m.processChangeEvents()

	for i := 0; i < m.config.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	for _, path := range m.existingDefinitions() {
		m.enqueue(path, OperationCreate, SourceManual)
	}

	logging.Info(managerSubsystem, "Started with %d workers", m.config.WorkerCount)
	return nil
}

// existingDefinitions lists the definition files present at start.
func (m *Manager) existingDefinitions() []string {
	dir := config.ClustersPath(m.config.ConfigPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn(managerSubsystem, "Failed to list %s: %v", dir, err)
		}
		return nil
	}

	var paths []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() && config.IsDefinitionFile(path) {
			paths = append(paths, path)
		}
	}
	return paths
}

// processChangeEvents converts change events to reconcile requests.
func (m *Manager) processChangeEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.changes:
			if !ok {
				return
			}
			logging.Debug(managerSubsystem, "Handling change event: %s %s", event.Operation, event.FilePath)
			m.enqueue(event.FilePath, event.Operation, event.Source)
		}
	}
}

func (m *Manager) enqueue(path string, op ChangeOperation, source ChangeSource) {
	m.updateStatus(path, StatePending, "")
	m.queue.Add(ReconcileRequest{FilePath: path, Operation: op, Attempt: 1})
	logging.Debug(managerSubsystem, "Queued %s of %s (%s)", op, path, source)
}

// worker processes reconciliation requests from the queue.
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	logging.Debug(managerSubsystem, "Worker %d started", id)

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug(managerSubsystem, "Worker %d shutting down", id)
			return
		}

		m.processRequest(req)
		m.queue.Done(req)
	}
}

// processRequest handles a single reconciliation request.
func (m *Manager) processRequest(req ReconcileRequest) {
	m.updateStatus(req.FilePath, StateReconciling, "")

	logging.Debug(managerSubsystem, "Reconciling %s (attempt %d)", req.FilePath, req.Attempt)

	// A hung reconciliation must not block its worker forever.
	ctx, cancel := context.WithTimeout(m.ctx, m.config.ReconcileTimeout)
	defer cancel()

	result := m.reconciler.Reconcile(ctx, req)

	if m.ctx.Err() != nil {
		return
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && result.Error == nil {
		result.Error = fmt.Errorf("reconciliation timed out after %v", m.config.ReconcileTimeout)
	}

	switch {
	case result.Error != nil:
		m.handleReconcileError(req, result)
	case result.Requeue || result.RequeueAfter > 0:
		m.handleRequeue(req, result)
		m.updateStatus(req.FilePath, StateSynced, "")
		m.observe(req, StateSynced)
	default:
		logging.Debug(managerSubsystem, "Successfully reconciled %s", req.FilePath)
		m.updateStatus(req.FilePath, StateSynced, "")
		m.observe(req, StateSynced)
	}
}

// handleReconcileError handles a failed reconciliation.
func (m *Manager) handleReconcileError(req ReconcileRequest, result ReconcileResult) {
	logging.Warn(managerSubsystem, "Reconciliation failed for %s: %v", req.FilePath, result.Error)

	if result.Permanent || req.Attempt >= m.config.MaxRetries {
		logging.Error(managerSubsystem, result.Error, "Giving up on %s after %d attempts", req.FilePath, req.Attempt)
		m.updateStatus(req.FilePath, StateFailed, result.Error.Error())
		m.observe(req, StateFailed)
		return
	}

	m.updateStatus(req.FilePath, StateError, result.Error.Error())
	m.observe(req, StateError)

	backoff := m.calculateBackoff(req.Attempt)

	req.Attempt++
	req.LastError = result.Error
	m.queue.AddAfter(req, backoff)

	logging.Debug(managerSubsystem, "Requeuing %s after %v (attempt %d)", req.FilePath, backoff, req.Attempt)
}

// handleRequeue handles a successful reconciliation that needs requeueing.
func (m *Manager) handleRequeue(req ReconcileRequest, result ReconcileResult) {
	delay := result.RequeueAfter
	if delay == 0 {
		delay = m.config.InitialBackoff
	}

	m.queue.AddAfter(req, delay)
	logging.Debug(managerSubsystem, "Requeuing %s after %v", req.FilePath, delay)
}

// calculateBackoff returns InitialBackoff doubled per earlier attempt,
// capped at MaxBackoff.
func (m *Manager) calculateBackoff(attempt int) time.Duration {
	b := wait.Backoff{
		Duration: m.config.InitialBackoff,
		Factor:   2,
		Steps:    attempt,
		Cap:      m.config.MaxBackoff,
	}
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.Step()
	}
	return d
}

func (m *Manager) observe(req ReconcileRequest, state ReconcileState) {
	if m.config.Observer != nil {
		m.config.Observer.ReconcileCompleted(string(req.Operation), string(state))
	}
}

// updateStatus updates the reconciliation status for a file.
func (m *Manager) updateStatus(path string, state ReconcileState, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[path]
	if !ok {
		status = &ReconcileStatus{FilePath: path}
		m.statuses[path] = status
	}

	status.State = state
	status.LastError = errMsg

	switch state {
	case StateSynced:
		now := time.Now()
		status.LastReconcileTime = &now
		status.RetryCount = 0
	case StateError:
		status.RetryCount++
	}
}

// Stop gracefully shuts down the reconciliation manager.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	logging.Info(managerSubsystem, "Stopping reconciliation manager...")

	m.cancel()

	if err := m.detector.Stop(); err != nil {
		logging.Error(managerSubsystem, err, "Error stopping change detector")
	}

	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info(managerSubsystem, "Reconciliation manager stopped")
	return nil
}

// GetStatus returns the reconciliation status for a file.
func (m *Manager) GetStatus(path string) (ReconcileStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[path]
	if !ok {
		return ReconcileStatus{}, false
	}
	return *status, true
}

// GetAllStatuses returns all reconciliation statuses sorted by file.
func (m *Manager) GetAllStatuses() []ReconcileStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ReconcileStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].FilePath < statuses[j].FilePath })
	return statuses
}

// TriggerReconcile manually queues a reconciliation of a definition file.
func (m *Manager) TriggerReconcile(path string) {
	m.enqueue(path, OperationUpdate, SourceManual)
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetQueueLength returns the current queue length.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}
