package alert

import (
	"context"
	"testing"
	"time"

	"github.com/airis-sh/airis/dispatch"
	"github.com/airis-sh/airis/models"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(dispatcher dispatch.Dispatcher) *Engine {
	return NewEngine(dispatcher, WithSMSDelay(0), WithDispatchTimeout(time.Second))
}

func TestSendAlert(t *testing.T) {
	mom := models.Contact{Name: "Mom", Phone: "555-1234"}
	drLee := models.Contact{Name: "Dr. Lee", Email: "lee@x.com"}
	dad := models.Contact{Name: "Dad", Phone: "(555) 987 6543", Email: "dad@x.com"}

	tests := []struct {
		name     string
		contacts []models.Contact
		opts     Options
		setup    func(r *dispatch.Recorder)
		expected Outcome
	}{
		{
			name:     "should do nothing for an empty contact list",
			contacts: []models.Contact{},
			opts:     DefaultOptions(),
			expected: Outcome{Success: false, Sent: 0, Failed: 0, Called: 0},
		},
		{
			name:     "should only email a contact without a phone",
			contacts: []models.Contact{drLee},
			opts:     DefaultOptions(),
			expected: Outcome{Success: true, Sent: 1, Failed: 0, Called: 0},
		},
		{
			name:     "should call, text and email",
			contacts: []models.Contact{mom, drLee},
			opts:     DefaultOptions(),
			expected: Outcome{Success: true, Sent: 2, Failed: 0, Called: 1},
		},
		{
			name:     "should count a failed call as failed not called",
			contacts: []models.Contact{mom},
			opts:     DefaultOptions(),
			setup:    func(r *dispatch.Recorder) { r.FailCalls = true },
			expected: Outcome{Success: true, Sent: 1, Failed: 1, Called: 0},
		},
		{
			name:     "should count every recipient of a failed email batch",
			contacts: []models.Contact{drLee, dad},
			opts:     DefaultOptions(),
			setup:    func(r *dispatch.Recorder) { r.FailEmail = true },
			expected: Outcome{Success: true, Sent: 1, Failed: 2, Called: 1},
		},
		{
			name:     "should keep texting after one SMS fails",
			contacts: []models.Contact{mom, dad},
			opts:     Options{SendSMS: true},
			setup:    func(r *dispatch.Recorder) { r.FailSMSTo["5551234"] = true },
			expected: Outcome{Success: true, Sent: 1, Failed: 1, Called: 0},
		},
		{
			name:     "should report failure when every channel fails",
			contacts: []models.Contact{mom, drLee},
			opts:     DefaultOptions(),
			setup: func(r *dispatch.Recorder) {
				r.FailCalls = true
				r.FailSMS = true
				r.FailEmail = true
			},
			expected: Outcome{Success: false, Sent: 0, Failed: 3, Called: 0},
		},
		{
			name:     "should recover a panicking dispatcher",
			contacts: []models.Contact{mom},
			opts:     Options{CallFirst: true},
			setup:    func(r *dispatch.Recorder) { r.PanicOnCall = true },
			expected: Outcome{Success: false, Sent: 0, Failed: 1, Called: 0},
		},
		{
			name:     "should dispatch nothing with every channel disabled",
			contacts: []models.Contact{mom, drLee},
			opts:     Options{},
			expected: Outcome{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := dispatch.NewRecorder()
			if tc.setup != nil {
				tc.setup(recorder)
			}

			outcome := newTestEngine(recorder).SendAlert(context.Background(), tc.contacts, "help", tc.opts)
			assert.Equal(t, tc.expected, outcome)
		})
	}
}

func TestSendAlertCallsFirstPhoneContactOnly(t *testing.T) {
	a := models.Contact{Name: "A", Phone: "111"}
	b := models.Contact{Name: "B", Phone: "222"}
	emailOnly := models.Contact{Name: "C", Email: "c@x.com"}

	recorder := dispatch.NewRecorder()
	newTestEngine(recorder).SendAlert(context.Background(), []models.Contact{emailOnly, a, b}, "help", DefaultOptions())

	calls := recorder.ByKind(dispatch.CALL_HANDOFF)
	assert.Len(t, calls, 1)
	assert.Equal(t, []string{"111"}, calls[0].To)

	sms := recorder.ByKind(dispatch.SMS_HANDOFF)
	assert.Len(t, sms, 2)
	assert.Equal(t, []string{"111"}, sms[0].To)
	assert.Equal(t, []string{"222"}, sms[1].To)
}

func TestSendAlertEndToEnd(t *testing.T) {
	contacts := []models.Contact{
		{Name: "Mom", Phone: "555-1234", Email: ""},
		{Name: "Dr. Lee", Phone: "", Email: "lee@x.com"},
	}

	recorder := dispatch.NewRecorder()
	outcome := newTestEngine(recorder).SendAlert(context.Background(), contacts, "help", DefaultOptions())

	assert.Equal(t, Outcome{Success: true, Sent: 2, Failed: 0, Called: 1}, outcome)
	assert.Equal(t, []dispatch.Handoff{
		{Kind: dispatch.CALL_HANDOFF, To: []string{"5551234"}},
		{Kind: dispatch.SMS_HANDOFF, To: []string{"5551234"}, Message: "help"},
		{Kind: dispatch.EMAIL_HANDOFF, To: []string{"lee@x.com"}, Message: "help"},
	}, recorder.Handoffs)
	assert.Contains(t, dispatch.EmailSubject(dispatch.DEFAULT_PRODUCT_NAME), "SOS Alert")
}

type stalledDispatcher struct {
	dispatch.Recorder
}

func (s *stalledDispatcher) CallContact(ctx context.Context, phone string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSendAlertTimesOutStalledDispatch(t *testing.T) {
	stalled := &stalledDispatcher{}
	engine := NewEngine(stalled, WithSMSDelay(0), WithDispatchTimeout(20*time.Millisecond))

	outcome := engine.SendAlert(context.Background(), []models.Contact{{Name: "Mom", Phone: "555"}}, "help", DefaultOptions())

	assert.Equal(t, Outcome{Success: true, Sent: 1, Failed: 1, Called: 0}, outcome)
}

func TestSendAlertPacesSMS(t *testing.T) {
	delays := []time.Duration{}
	engine := NewEngine(dispatch.NewRecorder(), WithSMSDelay(500*time.Millisecond))
	engine.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	contacts := []models.Contact{{Name: "A", Phone: "1"}, {Name: "B", Phone: "2"}, {Name: "C", Email: "c@x.com"}}
	engine.SendAlert(context.Background(), contacts, "help", DefaultOptions())

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, delays)
}

func TestSendAlertCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(dispatch.NewRecorder(), WithSMSDelay(time.Millisecond))
	outcome := engine.SendAlert(ctx, []models.Contact{{Name: "A", Phone: "1"}}, "help", Options{SendSMS: true})

	assert.Equal(t, Outcome{Success: false, Sent: 0, Failed: 1, Called: 0}, outcome)
}
