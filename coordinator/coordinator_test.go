package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/airis-sh/airis/alert"
	"github.com/airis-sh/airis/dispatch"
	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/settings"
	"github.com/stretchr/testify/assert"
)

type fakeSettings struct {
	snapshot   settings.Snapshot
	subscriber func(settings.Snapshot)
}

func (fs *fakeSettings) Snapshot() settings.Snapshot {
	return fs.snapshot.Copy()
}

func (fs *fakeSettings) Subscribe(fn func(settings.Snapshot)) func() {
	fs.subscriber = fn
	return func() { fs.subscriber = nil }
}

func (fs *fakeSettings) set(snap settings.Snapshot) {
	fs.snapshot = snap
	if fs.subscriber != nil {
		fs.subscriber(snap.Copy())
	}
}

type panickingSender struct{}

func (panickingSender) SendAlert(ctx context.Context, contacts []models.Contact, message string, opts alert.Options) alert.Outcome {
	panic("engine exploded")
}

type blockingSender struct {
	started chan struct{}
	release chan struct{}
}

func (bs *blockingSender) SendAlert(ctx context.Context, contacts []models.Contact, message string, opts alert.Options) alert.Outcome {
	close(bs.started)
	<-bs.release
	return alert.Outcome{Success: true, Sent: 1}
}

type recordStub struct {
	mu      sync.Mutex
	records []models.AlertRecord
}

func (rs *recordStub) create(record *models.AlertRecord) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.records = append(rs.records, *record)
	return nil
}

func newEngine(recorder *dispatch.Recorder) *alert.Engine {
	return alert.NewEngine(recorder, alert.WithSMSDelay(0))
}

func TestHandleEmergency(t *testing.T) {
	mom := models.Contact{Name: "Mom", Phone: "555-1234"}
	drLee := models.Contact{Name: "Dr. Lee", Email: "lee@x.com"}
	blank := models.Contact{Name: "Nobody", Phone: "  ", Email: " "}

	tests := []struct {
		name           string
		snapshot       settings.Snapshot
		config         Config
		expectedError  string
		expectedStatus string
		expectedCalls  int
	}{
		{
			name:           "should short-circuit with no contacts",
			snapshot:       settings.Snapshot{MessageTemplate: "help", SosEnabled: true},
			expectedError:  NO_CONTACTS,
			expectedStatus: NO_CONTACTS,
		},
		{
			name:           "should short-circuit when no contact has a phone or email",
			snapshot:       settings.Snapshot{Contacts: []models.Contact{blank}, MessageTemplate: "help", SosEnabled: true},
			expectedError:  NO_VALID_CONTACTS,
			expectedStatus: NO_VALID_CONTACTS,
		},
		{
			name:           "should short-circuit when sos is disabled",
			snapshot:       settings.Snapshot{Contacts: []models.Contact{mom}, MessageTemplate: "help", SosEnabled: false},
			expectedError:  SOS_DISABLED,
			expectedStatus: SOS_DISABLED,
		},
		{
			name:           "should short-circuit with no message at all",
			snapshot:       settings.Snapshot{Contacts: []models.Contact{mom}, MessageTemplate: " ", SosEnabled: true},
			expectedError:  NO_MESSAGE,
			expectedStatus: NO_MESSAGE,
		},
		{
			name:           "should fall back to the default message",
			snapshot:       settings.Snapshot{Contacts: []models.Contact{mom}, MessageTemplate: "", SosEnabled: true},
			config:         Config{DefaultMessage: "default help"},
			expectedStatus: ALERT_SENT,
			expectedCalls:  1,
		},
		{
			name:           "should alert the reachable contacts only",
			snapshot:       settings.Snapshot{Contacts: []models.Contact{blank, mom, drLee}, MessageTemplate: "help", SosEnabled: true},
			expectedStatus: ALERT_SENT,
			expectedCalls:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := dispatch.NewRecorder()
			records := &recordStub{}
			source := &fakeSettings{snapshot: tc.snapshot}

			c := New(source, newEngine(recorder), tc.config, WithRecorder(records.create))
			reported := []Status{}
			c.SetStatusCallback(func(s Status) { reported = append(reported, s) })

			status := c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER)

			assert.Equal(t, tc.expectedError, status.Error)
			assert.Equal(t, tc.expectedStatus, status.Name())
			assert.Len(t, recorder.ByKind(dispatch.CALL_HANDOFF), tc.expectedCalls)
			assert.Equal(t, []Status{status}, reported)
			assert.Len(t, records.records, 1)
			assert.Equal(t, tc.expectedStatus, records.records[0].Status)

			if tc.expectedError != "" {
				assert.Nil(t, status.Outcome)
				assert.Empty(t, recorder.Handoffs)
			}
		})
	}
}

func TestHandleEmergencyEndToEnd(t *testing.T) {
	recorder := dispatch.NewRecorder()
	source := &fakeSettings{snapshot: settings.Snapshot{
		Contacts: []models.Contact{
			{Name: "Mom", Phone: "555-1234"},
			{Name: "Dr. Lee", Email: "lee@x.com"},
		},
		MessageTemplate: "help",
		SosEnabled:      true,
	}}

	c := New(source, newEngine(recorder), Config{}, WithRecorder(nil))
	status := c.HandleEmergency(context.Background(), models.MANUAL_TRIGGER)

	assert.Equal(t, &alert.Outcome{Success: true, Sent: 2, Failed: 0, Called: 1}, status.Outcome)
	assert.Equal(t, []string{"5551234"}, recorder.ByKind(dispatch.CALL_HANDOFF)[0].To)
	assert.Equal(t, "help", recorder.ByKind(dispatch.SMS_HANDOFF)[0].Message)
	assert.Equal(t, []string{"lee@x.com"}, recorder.ByKind(dispatch.EMAIL_HANDOFF)[0].To)

	last, ok := c.LastStatus()
	assert.True(t, ok)
	assert.Equal(t, status, last)
}

func TestHandleEmergencyPartialAndFailed(t *testing.T) {
	source := &fakeSettings{snapshot: settings.Snapshot{
		Contacts:        []models.Contact{{Name: "Mom", Phone: "555-1234", Email: "mom@x.com"}},
		MessageTemplate: "help",
		SosEnabled:      true,
	}}

	recorder := dispatch.NewRecorder()
	recorder.FailEmail = true
	status := New(source, newEngine(recorder), Config{}, WithRecorder(nil)).HandleEmergency(context.Background(), models.MANUAL_TRIGGER)
	assert.Equal(t, ALERT_PARTIAL, status.Name())

	recorder = dispatch.NewRecorder()
	recorder.FailCalls, recorder.FailSMS, recorder.FailEmail = true, true, true
	status = New(source, newEngine(recorder), Config{}, WithRecorder(nil)).HandleEmergency(context.Background(), models.MANUAL_TRIGGER)
	assert.Equal(t, ALERT_FAILED, status.Name())
	assert.False(t, status.Misconfigured())
}

func TestHandleEmergencyRecoversSenderPanic(t *testing.T) {
	source := &fakeSettings{snapshot: settings.Snapshot{
		Contacts:        []models.Contact{{Name: "Mom", Phone: "555"}},
		MessageTemplate: "help",
		SosEnabled:      true,
	}}

	c := New(source, panickingSender{}, Config{}, WithRecorder(nil))

	var status Status
	assert.NotPanics(t, func() { status = c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER) })
	assert.Equal(t, DISPATCH_FAILED, status.Error)

	// the coordinator keeps working afterwards
	status = c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER)
	assert.Equal(t, DISPATCH_FAILED, status.Error)
}

func TestHandleEmergencyDropsOverlappingTriggers(t *testing.T) {
	source := &fakeSettings{snapshot: settings.Snapshot{
		Contacts:        []models.Contact{{Name: "Mom", Phone: "555"}},
		MessageTemplate: "help",
		SosEnabled:      true,
	}}
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	c := New(source, sender, Config{}, WithRecorder(nil))

	done := make(chan Status)
	go func() { done <- c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER) }()
	<-sender.started

	second := c.HandleEmergency(context.Background(), models.MANUAL_TRIGGER)
	assert.Equal(t, ALERT_IN_FLIGHT, second.Error)

	close(sender.release)
	first := <-done
	assert.Equal(t, ALERT_SENT, first.Name())
}

func TestHandleEmergencyCooldown(t *testing.T) {
	source := &fakeSettings{snapshot: settings.Snapshot{
		Contacts:        []models.Contact{{Name: "Mom", Phone: "555"}},
		MessageTemplate: "help",
		SosEnabled:      true,
	}}
	recorder := dispatch.NewRecorder()
	c := New(source, newEngine(recorder), Config{Cooldown: time.Minute}, WithRecorder(nil))

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.Equal(t, ALERT_SENT, c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER).Name())
	assert.Equal(t, ALERT_COOLDOWN, c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER).Error)

	// manual tests are never held back
	assert.Equal(t, ALERT_SENT, c.HandleEmergency(context.Background(), models.MANUAL_TRIGGER).Name())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, ALERT_SENT, c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER).Name())
}

func TestCoordinatorFollowsSettingsChanges(t *testing.T) {
	source := &fakeSettings{snapshot: settings.Snapshot{MessageTemplate: "help", SosEnabled: true}}
	recorder := dispatch.NewRecorder()
	c := New(source, newEngine(recorder), Config{}, WithRecorder(nil))

	assert.Equal(t, NO_CONTACTS, c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER).Error)

	source.set(settings.Snapshot{
		Contacts:        []models.Contact{{Name: "Mom", Phone: "555"}},
		MessageTemplate: "help",
		SosEnabled:      true,
	})
	assert.Equal(t, ALERT_SENT, c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER).Name())

	c.Close()
	source.set(settings.Snapshot{SosEnabled: true})
	assert.Equal(t, ALERT_SENT, c.HandleEmergency(context.Background(), models.DEVICE_TRIGGER).Name())
}

func TestOnEmergencyDetectedRunsInBackground(t *testing.T) {
	source := &fakeSettings{snapshot: settings.Snapshot{
		Contacts:        []models.Contact{{Name: "Mom", Phone: "555"}},
		MessageTemplate: "help",
		SosEnabled:      true,
	}}
	c := New(source, newEngine(dispatch.NewRecorder()), Config{}, WithRecorder(nil))

	statuses := make(chan Status, 1)
	c.SetStatusCallback(func(s Status) { statuses <- s })
	c.OnEmergencyDetected()

	select {
	case status := <-statuses:
		assert.Equal(t, models.DEVICE_TRIGGER, status.Trigger)
		assert.Equal(t, ALERT_SENT, status.Name())
	case <-time.After(5 * time.Second):
		t.Fatal("expected a status report")
	}
}
