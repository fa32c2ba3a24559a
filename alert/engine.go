package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/airis-sh/airis/colors"
	"github.com/airis-sh/airis/dispatch"
	"github.com/airis-sh/airis/logger"
	"github.com/airis-sh/airis/models"
	"github.com/pkg/errors"
)

const (
	DEFAULT_SMS_DELAY        = 500 * time.Millisecond
	DEFAULT_DISPATCH_TIMEOUT = 15 * time.Second
)

var (
	ErrDispatchTimeout = errors.New("dispatch timed out")

	logg = logger.NewLogger()
)

// Outcome of one fan-out cycle. Success is true iff Sent > 0 or Called > 0.
type Outcome struct {
	Success bool `json:"success"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
	Called  int  `json:"called"`
}

func (o Outcome) String() string {
	return fmt.Sprintf("success=%v sent=%v failed=%v called=%v", o.Success, o.Sent, o.Failed, o.Called)
}

// Options toggles the channels of a fan-out. The zero value disables
// everything, use DefaultOptions for the full call/SMS/email run.
type Options struct {
	CallFirst bool
	SendSMS   bool
	SendEmail bool
}

func DefaultOptions() Options {
	return Options{CallFirst: true, SendSMS: true, SendEmail: true}
}

// Engine turns one alert into calls, texts and an email to a contact list.
type Engine struct {
	dispatcher      dispatch.Dispatcher
	smsDelay        time.Duration
	dispatchTimeout time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

type EngineOption func(*Engine)

// WithSMSDelay sets the pause before each SMS handoff
func WithSMSDelay(delay time.Duration) EngineOption {
	return func(e *Engine) {
		e.smsDelay = delay
	}
}

// WithDispatchTimeout bounds how long a single handoff may take
func WithDispatchTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.dispatchTimeout = timeout
	}
}

func NewEngine(dispatcher dispatch.Dispatcher, opts ...EngineOption) *Engine {
	engine := &Engine{
		dispatcher:      dispatcher,
		smsDelay:        DEFAULT_SMS_DELAY,
		dispatchTimeout: DEFAULT_DISPATCH_TIMEOUT,
		sleep:           sleepContext,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// SendAlert calls the first contact with a phone, texts every contact with a
// phone and sends one email to every contact with an email, in that order.
// It never returns an error: every failed handoff is counted in Failed.
func (e *Engine) SendAlert(ctx context.Context, contacts []models.Contact, message string, opts Options) Outcome {
	outcome := Outcome{}

	if opts.CallFirst {
		e.callFirst(ctx, contacts, &outcome)
	}

	if opts.SendSMS {
		e.sendSMS(ctx, contacts, message, &outcome)
	}

	if opts.SendEmail {
		e.sendEmail(ctx, contacts, message, &outcome)
	}

	outcome.Success = outcome.Sent > 0 || outcome.Called > 0
	logg.Infof(colors.Blue("[fan-out] ")+"%v", outcome)

	return outcome
}

func (e *Engine) callFirst(ctx context.Context, contacts []models.Contact, outcome *Outcome) {
	for _, contact := range contacts {
		if !contact.HasPhone() {
			continue
		}

		phone := contact.Phone
		err := e.guard(ctx, func(ctx context.Context) error {
			return e.dispatcher.CallContact(ctx, phone)
		})
		if err != nil {
			logg.Errorf("Failed to call primary contact %v: %v", contact, err)
			outcome.Failed++
			return
		}

		logg.Infof("Calling primary emergency contact: %v", contact)
		outcome.Called++
		return
	}
}

func (e *Engine) sendSMS(ctx context.Context, contacts []models.Contact, message string, outcome *Outcome) {
	for _, contact := range contacts {
		if !contact.HasPhone() {
			continue
		}

		if err := e.sleep(ctx, e.smsDelay); err != nil {
			logg.Errorf("Failed to send SMS to %v: %v", contact, err)
			outcome.Failed++
			continue
		}

		phone := contact.Phone
		err := e.guard(ctx, func(ctx context.Context) error {
			return e.dispatcher.SendSMS(ctx, phone, message)
		})
		if err != nil {
			logg.Errorf("Failed to send SMS to %v: %v", contact, err)
			outcome.Failed++
			continue
		}

		outcome.Sent++
	}
}

func (e *Engine) sendEmail(ctx context.Context, contacts []models.Contact, message string, outcome *Outcome) {
	emails := []string{}
	for _, contact := range contacts {
		if contact.HasEmail() {
			emails = append(emails, contact.Email)
		}
	}

	if len(emails) == 0 {
		return
	}

	err := e.guard(ctx, func(ctx context.Context) error {
		return e.dispatcher.SendEmailBatch(ctx, emails, message)
	})
	if err != nil {
		logg.Errorf("Failed to send email to %v recipient(s): %v", len(emails), err)
		outcome.Failed += len(emails)
		return
	}

	outcome.Sent += len(emails)
}

// guard runs one handoff with a deadline and turns panics into errors, so a
// stuck or broken dispatcher can't stall or crash the fan-out.
func (e *Engine) guard(ctx context.Context, handoff func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "dispatch skipped")
	}

	if e.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.dispatchTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("dispatcher panic: %v", r)
			}
		}()
		done <- handoff(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ErrDispatchTimeout, ctx.Err().Error())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
