package device

import (
	"context"
	"strings"
	"sync"
)

// FakeTransport is an in-memory Transport for tests and demo mode. The
// zero value is unusable, build one with NewFakeTransport.
type FakeTransport struct {
	mu sync.Mutex

	DeviceName         string
	ServiceUUID        string
	CharacteristicUUID string

	// Failure switches, each makes the matching step fail.
	Unavailable     bool
	NoDevice        bool
	MissingService  bool
	MissingChar     bool
	RejectSubscribe bool

	// LatchedPayloads are pushed to the handler as soon as it subscribes
	LatchedPayloads [][]byte

	Connects    int
	Disconnects int

	handler    func([]byte)
	onLinkLost func()
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		DeviceName:         DEFAULT_NAME_PREFIX + "-0001",
		ServiceUUID:        DEFAULT_SERVICE_UUID,
		CharacteristicUUID: DEFAULT_CHARACTERISTIC_UUID,
	}
}

func (ft *FakeTransport) Enable() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.Unavailable {
		return ErrTransportUnavailable
	}
	return nil
}

func (ft *FakeTransport) Discover(ctx context.Context, namePrefix string) (Peripheral, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.NoDevice || !strings.HasPrefix(ft.DeviceName, namePrefix) {
		return nil, ErrNoDevice
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &fakePeripheral{transport: ft}, nil
}

// Notify pushes one notification payload to the subscribed handler, if any.
// It reports whether a handler received it.
func (ft *FakeTransport) Notify(payload ...byte) bool {
	ft.mu.Lock()
	handler := ft.handler
	ft.mu.Unlock()

	if handler == nil {
		return false
	}

	handler(payload)
	return true
}

// DropLink simulates the device going out of range.
func (ft *FakeTransport) DropLink() {
	ft.mu.Lock()
	onLinkLost := ft.onLinkLost
	ft.handler = nil
	ft.onLinkLost = nil
	ft.mu.Unlock()

	if onLinkLost != nil {
		onLinkLost()
	}
}

// Subscribed reports whether a notification handler is currently registered.
func (ft *FakeTransport) Subscribed() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.handler != nil
}

// Set runs fn with the transport locked, so failure switches can be
// flipped while a session is using it.
func (ft *FakeTransport) Set(fn func(ft *FakeTransport)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	fn(ft)
}

func (ft *FakeTransport) ConnectCount() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.Connects
}

type fakePeripheral struct {
	transport *FakeTransport
}

func (fp *fakePeripheral) Name() string {
	fp.transport.mu.Lock()
	defer fp.transport.mu.Unlock()
	return fp.transport.DeviceName
}

func (fp *fakePeripheral) Open(ctx context.Context) (Connection, error) {
	fp.transport.mu.Lock()
	defer fp.transport.mu.Unlock()

	fp.transport.Connects++
	return &fakeConnection{transport: fp.transport}, nil
}

type fakeConnection struct {
	transport *FakeTransport
	closed    bool
}

func (fc *fakeConnection) Service(ctx context.Context, uuid string) (Service, error) {
	fc.transport.mu.Lock()
	defer fc.transport.mu.Unlock()

	if fc.transport.MissingService || !strings.EqualFold(uuid, fc.transport.ServiceUUID) {
		return nil, ErrServiceNotFound
	}
	return &fakeService{transport: fc.transport}, nil
}

func (fc *fakeConnection) OnLinkLost(fn func()) {
	fc.transport.mu.Lock()
	defer fc.transport.mu.Unlock()
	fc.transport.onLinkLost = fn
}

func (fc *fakeConnection) Close() error {
	fc.transport.mu.Lock()
	defer fc.transport.mu.Unlock()

	if fc.closed {
		return nil
	}
	fc.closed = true
	fc.transport.Disconnects++
	fc.transport.handler = nil
	fc.transport.onLinkLost = nil
	return nil
}

type fakeService struct {
	transport *FakeTransport
}

func (fs *fakeService) Characteristic(ctx context.Context, uuid string) (Characteristic, error) {
	fs.transport.mu.Lock()
	defer fs.transport.mu.Unlock()

	if fs.transport.MissingChar || !strings.EqualFold(uuid, fs.transport.CharacteristicUUID) {
		return nil, ErrCharacteristicNotFound
	}
	return &fakeCharacteristic{transport: fs.transport}, nil
}

type fakeCharacteristic struct {
	transport *FakeTransport
}

func (fc *fakeCharacteristic) Subscribe(handler func(payload []byte)) error {
	fc.transport.mu.Lock()
	if fc.transport.RejectSubscribe {
		fc.transport.mu.Unlock()
		return ErrSubscribeRejected
	}
	fc.transport.handler = handler
	latched := fc.transport.LatchedPayloads
	fc.transport.mu.Unlock()

	for _, payload := range latched {
		handler(payload)
	}
	return nil
}

func (fc *fakeCharacteristic) Unsubscribe() error {
	fc.transport.mu.Lock()
	defer fc.transport.mu.Unlock()
	fc.transport.handler = nil
	return nil
}
