package reconciler

import (
	"context"
	"sync"
	"time"
)

// FileQueue orders reconcile requests by definition file. Each file appears
// at most once: a newer request replaces a queued one, a request for a file
// that is being reconciled is parked until Done, and a delayed retry is
// dropped when a fresh change for the file arrives.
type FileQueue struct {
	mu sync.Mutex

	order  []string
	queued map[string]ReconcileRequest
	active map[string]struct{}
	parked map[string]ReconcileRequest
	timers map[string]*time.Timer

	// wake is closed and replaced whenever Get callers should look again.
	wake   chan struct{}
	closed bool
}

// NewFileQueue returns an empty queue.
func NewFileQueue() *FileQueue {
	return &FileQueue{
		queued: make(map[string]ReconcileRequest),
		active: make(map[string]struct{}),
		parked: make(map[string]ReconcileRequest),
		timers: make(map[string]*time.Timer),
		wake:   make(chan struct{}),
	}
}

// Add queues req now.
func (q *FileQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.timers[req.FilePath]; ok {
		timer.Stop()
		delete(q.timers, req.FilePath)
	}
	q.enqueueLocked(req)
}

// AddAfter queues req once delay has passed, replacing an earlier delayed
// request for the same file.
func (q *FileQueue) AddAfter(req ReconcileRequest, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if timer, ok := q.timers[req.FilePath]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.timers[req.FilePath] != timer {
			return
		}
		delete(q.timers, req.FilePath)
		q.enqueueLocked(req)
	})
	q.timers[req.FilePath] = timer
}

func (q *FileQueue) enqueueLocked(req ReconcileRequest) {
	if q.closed {
		return
	}
	key := req.FilePath
	if _, busy := q.active[key]; busy {
		q.parked[key] = req
		return
	}
	if _, ok := q.queued[key]; !ok {
		q.order = append(q.order, key)
	}
	q.queued[key] = req
	q.broadcastLocked()
}

func (q *FileQueue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Get blocks until a request is available. It returns false once the queue
// is shut down or ctx ends. The caller must pass the request to Done.
func (q *FileQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ReconcileRequest{}, false
		}
		if len(q.order) > 0 {
			key := q.order[0]
			q.order = q.order[1:]
			req := q.queued[key]
			delete(q.queued, key)
			q.active[key] = struct{}{}
			q.mu.Unlock()
			return req, true
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ReconcileRequest{}, false
		case <-wake:
		}
	}
}

// Done releases the file of req and queues a request parked meanwhile.
func (q *FileQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := req.FilePath
	delete(q.active, key)
	if next, ok := q.parked[key]; ok {
		delete(q.parked, key)
		q.enqueueLocked(next)
	}
}

// Len returns the number of requests ready for Get.
func (q *FileQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Pending returns the number of delayed requests still waiting.
func (q *FileQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Shutdown drops delayed requests and releases every blocked Get. Later
// adds are ignored.
func (q *FileQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for key, timer := range q.timers {
		timer.Stop()
		delete(q.timers, key)
	}
	q.broadcastLocked()
}
