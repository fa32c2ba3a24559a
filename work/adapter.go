package work

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
)

const MAX_CONCURRENCY = 1

// WorkerPoolAdapter pairs a worker pool with a cron scheduler, so jobs can
// be run now or on a schedule.
type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *WorkerPool
}

func NewWorkerAdapter(timeZoneArg string) *WorkerPoolAdapter {
	return &WorkerPoolAdapter{
		cronScheduler: NewCronScheduler(timeZoneArg),
		pool:          NewWorkerPool(MAX_CONCURRENCY, DefaultRetryBackoffs),
	}
}

// Start starts the cron scheduler & worker pool
func (adapter *WorkerPoolAdapter) Start() error {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.pool.Start()
	adapter.cronScheduler.StartAsync()

	return nil
}

// Stop stops the cron scheduler & worker pool
func (adapter *WorkerPoolAdapter) Stop() error {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.Stop()

	return nil
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.RegisterHandler(name, handler)
}

// Perform sends a new job to the queue, now - to be executed as soon as a worker is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: %v", job)

	err := adapter.pool.Enqueue(job)
	if errors.Is(err, ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job)
		return nil
	}

	if err != nil {
		return errors.Wrapf(err, "error enqueuing job: %v", job)
	}

	return nil
}

// PeriodicallyPerform adds a job to the queue (to be executed)
// periodically, based on the 'cronExpression' expression provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).Do(adapter.performLogged, job)
	return err
}

// PerformEvery is PeriodicallyPerform with a fixed interval
func (adapter *WorkerPoolAdapter) PerformEvery(interval time.Duration, job JobParams) error {
	_, err := adapter.cronScheduler.Every(interval).Tag(job.Name).Do(adapter.performLogged, job)
	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}

func (adapter *WorkerPoolAdapter) performLogged(job JobParams) {
	if err := adapter.Perform(job); err != nil {
		logg.Error(err)
	}
}
