package reconciler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

type recordingReconciler struct {
	mu       sync.Mutex
	requests []ReconcileRequest
	results  []ReconcileResult
}

func (r *recordingReconciler) Reconcile(_ context.Context, req ReconcileRequest) ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if len(r.results) == 0 {
		return ReconcileResult{}
	}
	result := r.results[0]
	r.results = r.results[1:]
	return result
}

func (r *recordingReconciler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type recordingObserver struct {
	mu     sync.Mutex
	states []string
}

func (o *recordingObserver) ReconcileCompleted(_ string, state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(ManagerConfig{ConfigPath: t.TempDir()}, &recordingReconciler{})

	if m.config.WorkerCount != 2 {
		t.Errorf("expected 2 workers, got %d", m.config.WorkerCount)
	}
	if m.config.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", m.config.MaxRetries)
	}
	if m.config.InitialBackoff != time.Second || m.config.MaxBackoff != 5*time.Minute {
		t.Errorf("unexpected backoff bounds %v/%v", m.config.InitialBackoff, m.config.MaxBackoff)
	}
	if m.IsRunning() {
		t.Error("expected a new manager not to be running")
	}
}

func TestManager_CalculateBackoff(t *testing.T) {
	m := NewManager(ManagerConfig{
		ConfigPath:     t.TempDir(),
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	}, &recordingReconciler{})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := m.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestManager_ReconcilesExistingDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "web.yaml", "name: web\nmemberType: tomcat\n")
	writeDefinition(t, dir, "README.md", "ignored")

	rec := &recordingReconciler{}
	obs := &recordingObserver{}
	m := NewManager(ManagerConfig{ConfigPath: dir, DebounceInterval: 10 * time.Millisecond, Observer: obs}, rec)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	waitFor(t, func() bool {
		status, ok := m.GetStatus(path)
		return ok && status.State == StateSynced
	}, "existing definition was not reconciled")

	if rec.count() != 1 {
		t.Errorf("expected one reconciliation, got %d", rec.count())
	}
	if rec.requests[0].Operation != OperationCreate {
		t.Errorf("expected a create, got %s", rec.requests[0].Operation)
	}
	statuses := m.GetAllStatuses()
	if len(statuses) != 1 || statuses[0].LastReconcileTime == nil {
		t.Errorf("unexpected statuses %+v", statuses)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.states) != 1 || obs.states[0] != string(StateSynced) {
		t.Errorf("expected one synced observation, got %v", obs.states)
	}
}

func TestManager_ReconcilesNewFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingReconciler{}
	m := NewManager(ManagerConfig{ConfigPath: dir, DebounceInterval: 10 * time.Millisecond}, rec)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	path := writeDefinition(t, dir, "search.yaml", "name: search\nmemberType: elasticsearch\n")
	waitFor(t, func() bool { return rec.count() >= 1 }, "new definition was not reconciled")

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		last := rec.requests[len(rec.requests)-1]
		return last.Operation == OperationDelete
	}, "deletion was not reconciled")
}

func TestManager_RetriesUntilMaxRetries(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "web.yaml", "name: web\nmemberType: tomcat\n")

	failure := ReconcileResult{Error: errors.New("launcher unavailable")}
	rec := &recordingReconciler{results: []ReconcileResult{failure, failure, failure}}
	m := NewManager(ManagerConfig{
		ConfigPath:     dir,
		MaxRetries:     3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	}, rec)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	waitFor(t, func() bool {
		status, ok := m.GetStatus(path)
		return ok && status.State == StateFailed
	}, "expected the definition to end up failed")

	if rec.count() != 3 {
		t.Errorf("expected 3 attempts, got %d", rec.count())
	}
	rec.mu.Lock()
	last := rec.requests[2]
	rec.mu.Unlock()
	if last.Attempt != 3 || last.LastError == nil {
		t.Errorf("expected attempt 3 carrying the last error, got %+v", last)
	}
}

func TestManager_PermanentErrorIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "web.yaml", "name: web\nmemberType: tomcat\n")

	rec := &recordingReconciler{results: []ReconcileResult{{Error: errors.New("bad definition"), Permanent: true}}}
	m := NewManager(ManagerConfig{ConfigPath: dir, InitialBackoff: 5 * time.Millisecond}, rec)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	waitFor(t, func() bool {
		status, ok := m.GetStatus(path)
		return ok && status.State == StateFailed
	}, "expected the definition to fail")

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("expected a single attempt, got %d", rec.count())
	}
	status, _ := m.GetStatus(path)
	if status.LastError != "bad definition" {
		t.Errorf("expected the error to be recorded, got %q", status.LastError)
	}
}

func TestManager_TriggerReconcile(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingReconciler{}
	m := NewManager(ManagerConfig{ConfigPath: dir}, rec)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	m.TriggerReconcile("/manual.yaml")
	waitFor(t, func() bool { return rec.count() == 1 }, "manual trigger was not reconciled")

	rec.mu.Lock()
	op := rec.requests[0].Operation
	rec.mu.Unlock()
	if op != OperationUpdate {
		t.Errorf("expected an update, got %s", op)
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager(ManagerConfig{ConfigPath: t.TempDir()}, &recordingReconciler{})

	if err := m.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.IsRunning() {
		t.Error("expected manager to be running")
	}
	if err := m.Stop(); err != nil {
		t.Error(err)
	}
	if m.IsRunning() {
		t.Error("expected manager to be stopped")
	}
	if err := m.Stop(); err != nil {
		t.Error(err)
	}
}
