package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/pkg/logging"
)

const detectorSubsystem = "FilesystemDetector"

// FilesystemDetector watches the clusters/ directory with fsnotify. Bursts
// of events for one file within the debounce interval are folded into a
// single ChangeEvent.
type FilesystemDetector struct {
	dir      string
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	// settling holds the folded event of every file whose timer still runs.
	settling map[string]*settlingChange
}

type settlingChange struct {
	event ChangeEvent
	timer *time.Timer
}

// NewFilesystemDetector creates a detector for configPath/clusters. A zero
// debounce means 500ms.
func NewFilesystemDetector(configPath string, debounce time.Duration) *FilesystemDetector {
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &FilesystemDetector{
		dir:      config.ClustersPath(configPath),
		debounce: debounce,
		settling: make(map[string]*settlingChange),
	}
}

// WatchPath returns the watched directory.
func (d *FilesystemDetector) WatchPath() string {
	return d.dir
}

// Start creates the directory when missing and starts watching it.
// Starting a running detector does nothing.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil {
		return nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return err
	}

	d.watcher = watcher
	d.done = make(chan struct{})
	go d.run(ctx, watcher, d.done, changes)

	logging.Info(detectorSubsystem, "Watching %s for cluster definition changes", d.dir)
	return nil
}

func (d *FilesystemDetector) run(ctx context.Context, watcher *fsnotify.Watcher, done <-chan struct{}, changes chan<- ChangeEvent) {
	defer d.dropSettling()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error(detectorSubsystem, err, "Watcher error on %s", d.dir)
		}
	}
}

// handleFsEvent maps an fsnotify event on a definition file to a change.
// Everything outside the directory, foreign files and chmods are ignored.
func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	if filepath.Dir(event.Name) != filepath.Clean(d.dir) || !config.IsDefinitionFile(event.Name) {
		return
	}

	var op ChangeOperation
	switch {
	case event.Has(fsnotify.Create):
		op = OperationCreate
	case event.Has(fsnotify.Write):
		op = OperationUpdate
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename within the directory shows up as a create of the new name.
		op = OperationDelete
	default:
		return
	}

	d.settle(ChangeEvent{
		Name:      definitionName(event.Name),
		FilePath:  event.Name,
		Operation: op,
		Source:    SourceFilesystem,
		Timestamp: time.Now(),
	}, changes)
}

// settle restarts the debounce timer of the file and folds event into the
// change already waiting for it.
func (d *FilesystemDetector) settle(event ChangeEvent, changes chan<- ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := event.FilePath
	if prev, ok := d.settling[path]; ok {
		prev.timer.Stop()
		event.Operation = mergeOperations(prev.event.Operation, event.Operation)
	}

	entry := &settlingChange{event: event}
	entry.timer = time.AfterFunc(d.debounce, func() {
		d.mu.Lock()
		current := d.settling[path]
		if current != entry {
			d.mu.Unlock()
			return
		}
		delete(d.settling, path)
		d.mu.Unlock()

		select {
		case changes <- entry.event:
			logging.Debug(detectorSubsystem, "%s %s", entry.event.Operation, path)
		default:
			logging.Warn(detectorSubsystem, "Change channel full, dropped %s of %s", entry.event.Operation, path)
		}
	})
	d.settling[path] = entry
}

// mergeOperations folds a later change of a file into an earlier one.
func mergeOperations(earlier, later ChangeOperation) ChangeOperation {
	switch {
	case later == OperationDelete:
		return OperationDelete
	case earlier == OperationCreate:
		return OperationCreate
	case earlier == OperationDelete:
		// Deleted then written again: the file was replaced.
		return OperationUpdate
	}
	return later
}

// definitionName strips directory and extension from a definition path.
func definitionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (d *FilesystemDetector) dropSettling() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, entry := range d.settling {
		entry.timer.Stop()
		delete(d.settling, path)
	}
}

// Stop closes the watcher. Stopping an idle detector does nothing.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher == nil {
		return nil
	}
	close(d.done)
	if err := d.watcher.Close(); err != nil {
		logging.Error(detectorSubsystem, err, "Closing watcher on %s", d.dir)
	}
	d.watcher = nil

	logging.Info(detectorSubsystem, "Stopped watching %s", d.dir)
	return nil
}
