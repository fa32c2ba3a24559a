package device

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/airis-sh/airis/colors"
	"github.com/go-co-op/gocron"
)

const (
	SUPERVISOR_TAG = "device_supervisor"

	DEFAULT_SUPERVISOR_INTERVAL = 10 * time.Second
	DEFAULT_BASE_BACKOFF        = 2 * time.Second
	MAX_BACKOFF                 = 5 * time.Minute
)

type SupervisorConfig struct {
	Interval    time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

// Supervisor polls a session and brings a lost link back with exponential
// backoff. After MaxRetries failed attempts in a row it gives up until the
// session is connected again by someone else. MaxRetries 0 retries forever.
type Supervisor struct {
	session   *Session
	config    SupervisorConfig
	scheduler *gocron.Scheduler
	now       func() time.Time

	mu          sync.Mutex
	retries     int
	nextAttempt time.Time
	gaveUp      bool
}

func NewSupervisor(session *Session, config SupervisorConfig) *Supervisor {
	if config.Interval <= 0 {
		config.Interval = DEFAULT_SUPERVISOR_INTERVAL
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DEFAULT_BASE_BACKOFF
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.TagsUnique()

	return &Supervisor{session: session, config: config, scheduler: scheduler, now: time.Now}
}

// Start schedules the reconnect check and starts the scheduler
func (sv *Supervisor) Start() error {
	_, err := sv.scheduler.Every(sv.config.Interval).Tag(SUPERVISOR_TAG).SingletonMode().Do(sv.Check)
	if err != nil {
		return err
	}

	sv.logInfof("watching device link every %v", sv.config.Interval)
	sv.scheduler.StartAsync()
	return nil
}

func (sv *Supervisor) Stop() {
	sv.scheduler.Stop()
}

// Check runs one supervision step: reset when connected, otherwise try a
// reconnect if the backoff window has passed.
func (sv *Supervisor) Check() {
	if sv.session.Connected() {
		sv.reset()
		return
	}

	if !sv.session.ShouldReconnect() {
		return
	}

	sv.mu.Lock()
	if sv.gaveUp || sv.now().Before(sv.nextAttempt) {
		sv.mu.Unlock()
		return
	}
	attempt := sv.retries + 1
	sv.mu.Unlock()

	sv.logInfof("reconnect attempt %v", attempt)
	if sv.session.Connect(context.Background()) {
		sv.logInfof(colors.Green("device link restored"))
		sv.reset()
		return
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()

	sv.retries = attempt
	if sv.config.MaxRetries > 0 && sv.retries >= sv.config.MaxRetries {
		sv.gaveUp = true
		logg.Warnf(colors.Yellow("[supervisor] ")+"giving up after %v reconnect attempts", sv.retries)
		return
	}

	sv.nextAttempt = sv.now().Add(sv.backoff(sv.retries))
}

// Retries is the number of failed attempts in the current outage
func (sv *Supervisor) Retries() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.retries
}

func (sv *Supervisor) backoff(retries int) time.Duration {
	backoff := float64(sv.config.BaseBackoff) * math.Pow(2, float64(retries-1))
	if backoff > float64(MAX_BACKOFF) {
		return MAX_BACKOFF
	}
	return time.Duration(backoff)
}

func (sv *Supervisor) reset() {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	sv.retries = 0
	sv.gaveUp = false
	sv.nextAttempt = time.Time{}
}

func (sv *Supervisor) logInfof(template string, args ...interface{}) {
	logg.Infof(colors.Yellow("[supervisor] ")+template, args...)
}
