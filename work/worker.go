package work

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/airis-sh/airis/colors"
	"github.com/airis-sh/airis/logger"
	"github.com/pkg/errors"
)

var (
	ErrDuplicateHandler = errors.New("handler with provided name already mapped")
	ErrDuplicateJob     = errors.New("job with the same name already queued or in progress")
	ErrUnknownHandler   = errors.New("no handler mapped for job")
	ErrQueueFull        = errors.New("job queue is full")
	ErrPoolStopped      = errors.New("worker pool is not running")

	logg = logger.NewLogger()
)

type JobParams struct {
	Name    string
	Handler string

	// Unique jobs are rejected with ErrDuplicateJob while another job with
	// the same name is queued or running.
	Unique bool

	// MaxFails is how many times the job runs before it is dropped as dead.
	// Zero means one attempt.
	MaxFails int

	Args map[string]interface{}
}

func (job JobParams) String() string {
	return fmt.Sprintf("%v(%v)", job.Name, job.Handler)
}

type Handler func(map[string]interface{}) error

type worker struct {
	id       string
	pool     *WorkerPool
	stopChan chan struct{}
	backoffs []time.Duration
}

func newWorker(pool *WorkerPool, backoffs []time.Duration) *worker {
	return &worker{
		id:       makeIdentifier(),
		pool:     pool,
		stopChan: make(chan struct{}),
		backoffs: backoffs,
	}
}

func (w *worker) start() {
	go w.loop()
}

func (w *worker) stop() {
	w.stopChan <- struct{}{}
}

func (w *worker) loop() {
	w.logInfof("started")
	for {
		select {
		case <-w.stopChan:
			w.logInfof("stopped")
			return
		case job := <-w.pool.queue:
			w.processJob(job)
		}
	}
}

// processJob runs a job, retrying with backoff until it succeeds or has
// failed MaxFails times.
func (w *worker) processJob(job JobParams) {
	defer w.pool.release(job)

	attempts := job.MaxFails
	if attempts <= 0 {
		attempts = 1
	}

	for fails := 0; fails < attempts; fails++ {
		err := w.run(job)
		if err == nil {
			w.logInfof("job %v completed", job)
			return
		}

		w.logErrorf("job %v failed (%v/%v): %v", job, fails+1, attempts, err)
		if fails+1 < attempts && !w.sleep(w.backoff(fails)) {
			return
		}
	}

	w.logErrorf("job %v is dead", job)
}

func (w *worker) run(job JobParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job panic: %v", r)
		}
	}()

	handler, ok := w.pool.handler(job.Handler)
	if !ok {
		return errors.Wrap(ErrUnknownHandler, job.Handler)
	}

	return handler(job.Args)
}

func (w *worker) backoff(fails int) time.Duration {
	if len(w.backoffs) == 0 {
		return 0
	}
	if fails >= len(w.backoffs) {
		fails = len(w.backoffs) - 1
	}
	return w.backoffs[fails]
}

// sleep waits d unless the worker is stopped first. A stop request seen
// here is passed back so the loop still exits.
func (w *worker) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-w.stopChan:
		go func() { w.stopChan <- struct{}{} }()
		return false
	}
}

func (w *worker) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow(fmt.Sprintf("[worker %v] ", w.id))
	logg.Infof(prefix+template, args...)
}

func (w *worker) logErrorf(template string, args ...interface{}) {
	prefix := colors.Red(fmt.Sprintf("[worker %v] ", w.id))
	logg.Errorf(prefix+template, args...)
}

func makeIdentifier() string {
	return fmt.Sprintf("%06x", rand.Intn(1<<24))
}
