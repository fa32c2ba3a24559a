package dispatch

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const (
	CALL_HANDOFF  = "call"
	SMS_HANDOFF   = "sms"
	EMAIL_HANDOFF = "email"
)

type Handoff struct {
	Kind    string
	To      []string
	Message string
}

// Recorder is a Dispatcher that remembers every handoff instead of making
// it. Setting one of the Fail* fields makes that channel return an error.
type Recorder struct {
	mu       sync.Mutex
	Handoffs []Handoff

	FailCalls bool
	FailSMS   bool
	FailEmail bool

	// FailSMSTo fails SMS handoffs to the listed (normalized) numbers only
	FailSMSTo map[string]bool

	// PanicOnCall makes CallContact panic, to exercise recovery paths
	PanicOnCall bool
}

func NewRecorder() *Recorder {
	return &Recorder{Handoffs: []Handoff{}, FailSMSTo: map[string]bool{}}
}

func (r *Recorder) CallContact(ctx context.Context, phone string) error {
	if r.PanicOnCall {
		panic("recorder: call panic")
	}

	return r.record(Handoff{Kind: CALL_HANDOFF, To: []string{NormalizePhone(phone)}}, r.FailCalls)
}

func (r *Recorder) SendSMS(ctx context.Context, phone, message string) error {
	to := NormalizePhone(phone)
	return r.record(Handoff{Kind: SMS_HANDOFF, To: []string{to}, Message: message}, r.FailSMS || r.failSMSTo(to))
}

func (r *Recorder) SendEmail(ctx context.Context, email, message string) error {
	return r.SendEmailBatch(ctx, []string{email}, message)
}

func (r *Recorder) SendEmailBatch(ctx context.Context, emails []string, message string) error {
	to := append([]string{}, emails...)
	return r.record(Handoff{Kind: EMAIL_HANDOFF, To: to, Message: message}, r.FailEmail)
}

// ByKind returns the recorded handoffs of one kind, in the order they happened
func (r *Recorder) ByKind(kind string) []Handoff {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []Handoff{}
	for _, handoff := range r.Handoffs {
		if handoff.Kind == kind {
			result = append(result, handoff)
		}
	}
	return result
}

func (r *Recorder) record(handoff Handoff, fail bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Handoffs = append(r.Handoffs, handoff)
	if fail {
		return errors.Wrapf(ErrHandoffFailed, "recorder: %v", handoff.Kind)
	}

	return nil
}

func (r *Recorder) failSMSTo(phone string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.FailSMSTo[phone]
}
