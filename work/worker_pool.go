package work

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const DEFAULT_QUEUE_SIZE = 64

var DefaultRetryBackoffs = []time.Duration{10 * time.Second, 30 * time.Second, 2 * time.Minute}

type WorkerPool struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	inFlight map[string]bool
	queue    chan JobParams
	workers  []*worker
	started  bool
}

func NewWorkerPool(concurrency int, backoffs []time.Duration) *WorkerPool {
	wp := &WorkerPool{
		handlers: make(map[string]Handler),
		inFlight: make(map[string]bool),
		queue:    make(chan JobParams, DEFAULT_QUEUE_SIZE),
	}

	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker(wp, backoffs))
	}

	return wp
}

// RegisterHandler binds a name to a job handler for all workers in pool
func (wp *WorkerPool) RegisterHandler(name string, handler Handler) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}

	wp.handlers[name] = handler
	return nil
}

// Enqueue adds a job to the queue, to be picked up by the next free worker
func (wp *WorkerPool) Enqueue(job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return errors.New("both a name & handler is required for a job")
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return ErrPoolStopped
	}

	if _, ok := wp.handlers[job.Handler]; !ok {
		return errors.Wrap(ErrUnknownHandler, job.Handler)
	}

	if job.Unique && wp.inFlight[job.Name] {
		return ErrDuplicateJob
	}

	select {
	case wp.queue <- job:
	default:
		return ErrQueueFull
	}

	if job.Unique {
		wp.inFlight[job.Name] = true
	}

	return nil
}

// Start starts all workers in pool i.e the workers can start processing jobs
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// Stop stops all workers in pool i.e jobs will stop being processed
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.started {
		wp.mu.Unlock()
		return
	}
	wp.started = false
	wp.mu.Unlock()

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
}

func (wp *WorkerPool) handler(name string) (Handler, bool) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	handler, ok := wp.handlers[name]
	return handler, ok
}

func (wp *WorkerPool) release(job JobParams) {
	if !job.Unique {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	delete(wp.inFlight, job.Name)
}
