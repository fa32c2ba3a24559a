package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/airis-sh/airis/alert"
	"github.com/airis-sh/airis/colors"
	"github.com/airis-sh/airis/logger"
	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/settings"
	"github.com/airis-sh/airis/utils"
)

// Precondition and failure statuses reported instead of an outcome
const (
	NO_CONTACTS       = "no_contacts"
	NO_VALID_CONTACTS = "no_valid_contacts"
	NO_MESSAGE        = "no_message"
	SOS_DISABLED      = "sos_disabled"
	ALERT_IN_FLIGHT   = "alert_in_flight"
	ALERT_COOLDOWN    = "alert_cooldown"
	DISPATCH_FAILED   = "dispatch_failed"
)

// Statuses for cycles that reached the fan-out
const (
	ALERT_SENT    = "sent"
	ALERT_PARTIAL = "partial"
	ALERT_FAILED  = "failed"
)

var logg = logger.NewLogger()

// Status is what one coordinator cycle reports upward. Exactly one of
// Outcome or Error is set.
type Status struct {
	Trigger string         `json:"trigger"`
	Outcome *alert.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
	At      time.Time      `json:"at"`
}

// Name collapses the status into one word: the error code, or
// sent/partial/failed for a finished fan-out.
func (s Status) Name() string {
	if s.Error != "" {
		return s.Error
	}

	switch {
	case s.Outcome == nil || !s.Outcome.Success:
		return ALERT_FAILED
	case s.Outcome.Failed > 0:
		return ALERT_PARTIAL
	default:
		return ALERT_SENT
	}
}

// Misconfigured reports whether the user has to fix settings before an
// alert can go out.
func (s Status) Misconfigured() bool {
	switch s.Error {
	case NO_CONTACTS, NO_VALID_CONTACTS, NO_MESSAGE, SOS_DISABLED:
		return true
	}
	return false
}

type SettingsSource interface {
	Snapshot() settings.Snapshot
	Subscribe(fn func(settings.Snapshot)) (unsubscribe func())
}

type Sender interface {
	SendAlert(ctx context.Context, contacts []models.Contact, message string, opts alert.Options) alert.Outcome
}

type StatusFunc func(Status)

type Config struct {
	// DefaultMessage is used when the stored template is blank
	DefaultMessage string

	// Cooldown drops device triggers that arrive within this window of the
	// last cycle that reached the fan-out.
	Cooldown time.Duration
}

// Coordinator applies the alert business rules between the device link
// and the fan-out engine.
type Coordinator struct {
	sender      Sender
	config      Config
	record      func(*models.AlertRecord) error
	now         func() time.Time
	unsubscribe func()

	mu         sync.Mutex
	latest     settings.Snapshot
	inFlight   bool
	lastAlert  time.Time
	lastStatus *Status
	onStatus   StatusFunc
}

type Option func(*Coordinator)

// WithRecorder replaces how cycles are stored. nil disables history.
func WithRecorder(record func(*models.AlertRecord) error) Option {
	return func(c *Coordinator) {
		c.record = record
	}
}

func New(source SettingsSource, sender Sender, config Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		sender: sender,
		config: config,
		record: models.CreateAlertRecord,
		now:    time.Now,
		latest: source.Snapshot(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.unsubscribe = source.Subscribe(c.updateSettings)
	return c
}

// SetStatusCallback registers the one status observer. Passing nil clears it.
func (c *Coordinator) SetStatusCallback(fn StatusFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// LastStatus is the most recent reported status, if any.
func (c *Coordinator) LastStatus() (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastStatus == nil {
		return Status{}, false
	}
	return *c.lastStatus, true
}

// OnEmergencyDetected lets the coordinator observe a device session. The
// cycle runs on its own goroutine so the notification path never blocks.
func (c *Coordinator) OnEmergencyDetected() {
	go c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER)
}

// HandleEmergency runs one alert cycle and reports its status. A trigger
// arriving while another cycle runs is dropped with ALERT_IN_FLIGHT.
func (c *Coordinator) HandleEmergency(ctx context.Context, trigger string) Status {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return c.report(Status{Trigger: trigger, Error: ALERT_IN_FLIGHT})
	}
	c.inFlight = true
	snap := c.latest.Copy()
	c.mu.Unlock()

	status := func() Status {
		defer func() {
			c.mu.Lock()
			c.inFlight = false
			c.mu.Unlock()
		}()
		return c.run(ctx, trigger, snap)
	}()

	return c.report(status)
}

// Close stops following settings changes
func (c *Coordinator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

func (c *Coordinator) run(ctx context.Context, trigger string, snap settings.Snapshot) Status {
	status := Status{Trigger: trigger}

	if !snap.SosEnabled {
		status.Error = SOS_DISABLED
		return status
	}

	if trigger == models.DEVICE_TRIGGER && c.inCooldown() {
		status.Error = ALERT_COOLDOWN
		return status
	}

	if len(snap.Contacts) == 0 {
		status.Error = NO_CONTACTS
		return status
	}

	contacts := reachableContacts(snap.Contacts)
	if len(contacts) == 0 {
		status.Error = NO_VALID_CONTACTS
		return status
	}

	message := snap.MessageTemplate
	if utils.IsBlank(message) {
		message = c.config.DefaultMessage
	}
	if utils.IsBlank(message) {
		status.Error = NO_MESSAGE
		return status
	}

	c.mu.Lock()
	c.lastAlert = c.now()
	c.mu.Unlock()

	logg.Infof(colors.Red("[coordinator] ")+"%v alert to %v contact(s)", trigger, len(contacts))
	outcome, ok := c.send(ctx, contacts, message)
	if !ok {
		status.Error = DISPATCH_FAILED
		return status
	}

	status.Outcome = &outcome
	return status
}

func (c *Coordinator) send(ctx context.Context, contacts []models.Contact, message string) (outcome alert.Outcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logg.Errorf(colors.Red("[coordinator] ")+"fan-out panic: %v", r)
			ok = false
		}
	}()

	return c.sender.SendAlert(ctx, contacts, message, alert.DefaultOptions()), true
}

func (c *Coordinator) report(status Status) Status {
	status.At = c.now()

	c.mu.Lock()
	c.lastStatus = &status
	onStatus := c.onStatus
	c.mu.Unlock()

	if status.Error != "" {
		logg.Warnf(colors.Yellow("[coordinator] ")+"%v trigger: %v", status.Trigger, status.Error)
	} else {
		logg.Infof(colors.Green("[coordinator] ")+"%v trigger: %v (%v)", status.Trigger, status.Name(), status.Outcome)
	}

	c.store(status)

	if onStatus != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logg.Errorf("status callback panic: %v", r)
				}
			}()
			onStatus(status)
		}()
	}

	return status
}

func (c *Coordinator) store(status Status) {
	if c.record == nil {
		return
	}

	record := &models.AlertRecord{Trigger: status.Trigger, Status: status.Name()}
	if status.Outcome != nil {
		record.Success = status.Outcome.Success
		record.Sent = status.Outcome.Sent
		record.Failed = status.Outcome.Failed
		record.Called = status.Outcome.Called
	}

	if err := c.record(record); err != nil {
		logg.Errorf("failed to store alert record: %v", err)
	}
}

func (c *Coordinator) updateSettings(snap settings.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = snap
}

func (c *Coordinator) inCooldown() bool {
	if c.config.Cooldown <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastAlert.IsZero() && c.now().Sub(c.lastAlert) < c.config.Cooldown
}

func reachableContacts(contacts []models.Contact) []models.Contact {
	reachable := []models.Contact{}
	for _, contact := range contacts {
		if contact.Reachable() {
			reachable = append(reachable, contact)
		}
	}
	return reachable
}
