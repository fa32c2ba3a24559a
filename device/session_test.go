package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu    sync.Mutex
	count int
}

func (co *countingObserver) OnEmergencyDetected() {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.count++
}

func (co *countingObserver) Count() int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.count
}

func connectedSession(t *testing.T, opts Options) (*Session, *FakeTransport) {
	transport := NewFakeTransport()
	session := NewSession(transport, opts)

	require.True(t, session.Connect(context.Background()))
	return session, transport
}

func TestDecode(t *testing.T) {
	tests := []struct {
		payload  []byte
		expected Signal
	}{
		{payload: []byte{1}, expected: SIGNAL_EMERGENCY},
		{payload: []byte{0}, expected: SIGNAL_CLEAR},
		{payload: []byte{2}, expected: Signal(2)},
		{payload: []byte{255}, expected: Signal(255)},
		{payload: []byte{}, expected: SIGNAL_CLEAR},
		{payload: []byte{1, 0}, expected: SIGNAL_EMERGENCY},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, Decode(tc.payload), "payload %v", tc.payload)
	}
}

func TestEmergencySignalsFireOncePerOneByte(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	observer := &countingObserver{}
	session.SetCallbacks(observer)

	for _, b := range []byte{1, 0, 1, 2, 1} {
		assert.True(t, transport.Notify(b))
	}

	assert.Equal(t, 3, observer.Count())
}

func TestNonEmergencyBytesAreIgnored(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	observer := &countingObserver{}
	session.SetCallbacks(observer)

	transport.Notify(0)
	transport.Notify(2)
	transport.Notify(200)
	transport.Notify()

	assert.Equal(t, 0, observer.Count())
}

func TestSetCallbacksReplacesPrimaryObserver(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	first := &countingObserver{}
	second := &countingObserver{}

	session.SetCallbacks(first)
	session.SetCallbacks(second)
	transport.Notify(1)

	assert.Equal(t, 0, first.Count())
	assert.Equal(t, 1, second.Count())
}

func TestAddObserverNotifiesInOrder(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	order := []string{}

	session.AddObserver(ObserverFunc(func() { order = append(order, "extra-1") }))
	unsubscribe := session.AddObserver(ObserverFunc(func() { order = append(order, "extra-2") }))
	session.SetCallbacks(ObserverFunc(func() { order = append(order, "primary") }))

	transport.Notify(1)
	assert.Equal(t, []string{"primary", "extra-1", "extra-2"}, order)

	unsubscribe()
	order = []string{}
	transport.Notify(1)
	assert.Equal(t, []string{"primary", "extra-1"}, order)
}

func TestPanickingObserverDoesNotStopOthers(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	observer := &countingObserver{}

	session.SetCallbacks(ObserverFunc(func() { panic("boom") }))
	session.AddObserver(observer)

	assert.NotPanics(t, func() { transport.Notify(1) })
	assert.Equal(t, 1, observer.Count())
}

func TestEmergencyCooldown(t *testing.T) {
	session, transport := connectedSession(t, Options{EmergencyCooldown: 10 * time.Second})
	observer := &countingObserver{}
	session.SetCallbacks(observer)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	session.now = func() time.Time { return now }

	transport.Notify(1)
	transport.Notify(1)
	now = now.Add(11 * time.Second)
	transport.Notify(1)

	assert.Equal(t, 2, observer.Count())
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(ft *FakeTransport)
		opts    Options
		success bool
	}{
		{name: "should connect to a matching device", setup: func(ft *FakeTransport) {}, success: true},
		{name: "should fail when transport is unavailable", setup: func(ft *FakeTransport) { ft.Unavailable = true }},
		{name: "should fail when no device is found", setup: func(ft *FakeTransport) { ft.NoDevice = true }},
		{name: "should fail when device name does not match", setup: func(ft *FakeTransport) { ft.DeviceName = "Keyboard" }},
		{name: "should fail when service is missing", setup: func(ft *FakeTransport) { ft.MissingService = true }},
		{name: "should fail when characteristic is missing", setup: func(ft *FakeTransport) { ft.MissingChar = true }},
		{name: "should fail when subscription is rejected", setup: func(ft *FakeTransport) { ft.RejectSubscribe = true }},
		{
			name:  "should fail when device exposes another service",
			setup: func(ft *FakeTransport) {},
			opts:  Options{ServiceUUID: "0000180d-0000-1000-8000-00805f9b34fb"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := NewFakeTransport()
			transport.Set(tc.setup)
			session := NewSession(transport, tc.opts)

			assert.NotPanics(t, func() {
				assert.Equal(t, tc.success, session.Connect(context.Background()))
			})
			assert.Equal(t, tc.success, session.Connected())
			assert.Equal(t, tc.success, transport.Subscribed())

			if tc.success {
				assert.Equal(t, CONNECTED, session.State())
				assert.Equal(t, "AirMouse-0001", session.DeviceName())
			} else {
				assert.Equal(t, DISCONNECTED, session.State())
				assert.Empty(t, session.DeviceName())
			}
		})
	}
}

func TestConnectWithoutTransport(t *testing.T) {
	session := NewSession(nil, Options{})

	assert.False(t, session.Connect(context.Background()))
	assert.False(t, session.Connected())
}

func TestConnectedIsSafeBeforeConnect(t *testing.T) {
	session := NewSession(NewFakeTransport(), Options{})

	assert.False(t, session.Connected())
	assert.Equal(t, DISCONNECTED, session.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	session, transport := connectedSession(t, Options{})

	assert.NotPanics(t, func() {
		session.Disconnect()
		assert.Equal(t, DISCONNECTED, session.State())
		session.Disconnect()
		assert.Equal(t, DISCONNECTED, session.State())
	})
	assert.False(t, transport.Subscribed())
	assert.Equal(t, 1, transport.Disconnects)

	fresh := NewSession(NewFakeTransport(), Options{})
	assert.NotPanics(t, func() {
		fresh.Disconnect()
		fresh.Disconnect()
	})
	assert.False(t, fresh.Connected())
}

func TestLinkLoss(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	observer := &countingObserver{}
	session.SetCallbacks(observer)

	transport.DropLink()

	assert.False(t, session.Connected())
	assert.Empty(t, session.DeviceName())
	assert.False(t, transport.Notify(1))
	assert.Equal(t, 0, observer.Count())
	assert.True(t, session.ShouldReconnect())

	// reconnect picks up a fresh subscription
	assert.True(t, session.Connect(context.Background()))
	transport.Notify(1)
	assert.Equal(t, 1, observer.Count())
}

func TestStaleNotificationsAreIgnored(t *testing.T) {
	session, transport := connectedSession(t, Options{})
	observer := &countingObserver{}
	session.SetCallbacks(observer)

	transport.mu.Lock()
	staleHandler := transport.handler
	transport.mu.Unlock()

	session.Disconnect()
	staleHandler([]byte{1})

	assert.Equal(t, 0, observer.Count())
	assert.False(t, session.ShouldReconnect())
}

func TestConnectWhenAlreadyConnected(t *testing.T) {
	session, transport := connectedSession(t, Options{})

	assert.True(t, session.Connect(context.Background()))
	assert.Equal(t, 1, transport.ConnectCount())
}

func TestEmergencyPushedOnSubscribeIsDelivered(t *testing.T) {
	tests := []struct {
		name     string
		latched  [][]byte
		expected int
	}{
		{name: "latched emergency fires once connected", latched: [][]byte{{1}}, expected: 1},
		{name: "each latched emergency fires", latched: [][]byte{{1}, {0}, {1}}, expected: 2},
		{name: "latched clear byte is ignored", latched: [][]byte{{0}}, expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := NewFakeTransport()
			transport.LatchedPayloads = tc.latched

			session := NewSession(transport, Options{})
			observer := &countingObserver{}
			session.SetCallbacks(observer)

			require.True(t, session.Connect(context.Background()))
			assert.Equal(t, tc.expected, observer.Count())

			// nothing is replayed on later notifications
			transport.Notify(1)
			assert.Equal(t, tc.expected+1, observer.Count())
		})
	}
}
