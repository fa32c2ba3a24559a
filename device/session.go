package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airis-sh/airis/colors"
	"github.com/airis-sh/airis/logger"
	"github.com/pkg/errors"
)

const (
	DISCONNECTED State = iota
	CONNECTING
	CONNECTED
)

const DEFAULT_CONNECT_TIMEOUT = 30 * time.Second

var logg = logger.NewLogger()

type State int

func (s State) String() string {
	switch s {
	case CONNECTING:
		return "connecting"
	case CONNECTED:
		return "connected"
	default:
		return "disconnected"
	}
}

// Observer is told about every emergency signal the device sends.
// OnEmergencyDetected runs on the transport's notification path and must
// return quickly.
type Observer interface {
	OnEmergencyDetected()
}

type ObserverFunc func()

func (fn ObserverFunc) OnEmergencyDetected() {
	fn()
}

type Options struct {
	NamePrefix         string
	ServiceUUID        string
	CharacteristicUUID string
	ConnectTimeout     time.Duration

	// EmergencyCooldown drops emergency signals that arrive within this
	// window of the last delivered one. Zero delivers every signal.
	EmergencyCooldown time.Duration
}

func DefaultOptions() Options {
	return Options{
		NamePrefix:         DEFAULT_NAME_PREFIX,
		ServiceUUID:        DEFAULT_SERVICE_UUID,
		CharacteristicUUID: DEFAULT_CHARACTERISTIC_UUID,
		ConnectTimeout:     DEFAULT_CONNECT_TIMEOUT,
	}
}

type observerEntry struct {
	id       int
	observer Observer
}

// Session owns the link to one sensor device and turns its notifications
// into emergency events.
//
// The notification subscription is active iff State() == CONNECTED. Every
// successful Connect starts a new generation; callbacks from an older
// connection are ignored.
type Session struct {
	transport Transport
	opts      Options
	now       func() time.Time

	mu             sync.RWMutex
	state          State
	generation     uint64
	deviceName     string
	conn           Connection
	characteristic Characteristic
	wantConnected  bool
	lastEmergency  time.Time

	// emergencies seen while CONNECTING, delivered once the link is up
	pending int

	primary        Observer
	observers      []observerEntry
	nextObserverID int
}

func NewSession(transport Transport, opts Options) *Session {
	defaults := DefaultOptions()
	if opts.NamePrefix == "" {
		opts.NamePrefix = defaults.NamePrefix
	}
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = defaults.ServiceUUID
	}
	if opts.CharacteristicUUID == "" {
		opts.CharacteristicUUID = defaults.CharacteristicUUID
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}

	return &Session{transport: transport, opts: opts, now: time.Now, state: DISCONNECTED}
}

// Connect discovers the device, opens a link, subscribes to the emergency
// characteristic and watches for link loss. It returns true only when all
// of that worked. On any failure the session is left DISCONNECTED.
func (s *Session) Connect(ctx context.Context) (connected bool) {
	s.mu.Lock()
	s.wantConnected = true
	switch s.state {
	case CONNECTED:
		s.mu.Unlock()
		return true
	case CONNECTING:
		s.mu.Unlock()
		s.logInfof("connect already in progress")
		return false
	}
	s.state = CONNECTING
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logErrorf("connect panic: %v", r)
			s.resetIfGeneration(generation)
			connected = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	name, conn, characteristic, err := s.establish(ctx, generation)
	if err != nil {
		s.logErrorf("connect failed: %v", err)
		s.resetIfGeneration(generation)
		return false
	}

	s.mu.Lock()
	if s.generation != generation || s.state != CONNECTING {
		// Disconnect was called while we were connecting
		s.mu.Unlock()
		teardown(conn, characteristic)
		return false
	}
	s.state = CONNECTED
	s.deviceName = name
	s.conn = conn
	s.characteristic = characteristic
	pending := s.pending
	s.pending = 0
	s.mu.Unlock()

	s.logInfof("connected to %v", name)
	for i := 0; i < pending; i++ {
		s.handleNotification(generation, []byte{byte(SIGNAL_EMERGENCY)})
	}
	return true
}

// Disconnect unsubscribes and closes the link. Calling it on a
// disconnected session does nothing.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.wantConnected = false
	if s.state == DISCONNECTED {
		s.mu.Unlock()
		return
	}

	conn, characteristic, name := s.conn, s.characteristic, s.deviceName
	s.clearLocked()
	s.mu.Unlock()

	teardown(conn, characteristic)
	if name != "" {
		s.logInfof("disconnected from %v", name)
	}
}

// SetCallbacks replaces the primary observer. Passing nil clears it.
func (s *Session) SetCallbacks(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = observer
}

// AddObserver registers an extra observer, notified after the primary one
// in registration order. The returned func removes it.
func (s *Session) AddObserver(observer Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextObserverID++
	id := s.nextObserverID
	s.observers = append(s.observers, observerEntry{id: id, observer: observer})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, entry := range s.observers {
			if entry.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) Connected() bool {
	return s.State() == CONNECTED
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DeviceName is the connected device's name, or "" when disconnected.
func (s *Session) DeviceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceName
}

// ShouldReconnect is true when the last explicit call was Connect, so a
// supervisor may bring a lost link back.
func (s *Session) ShouldReconnect() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wantConnected
}

func (s *Session) establish(ctx context.Context, generation uint64) (string, Connection, Characteristic, error) {
	if s.transport == nil {
		return "", nil, nil, ErrTransportUnavailable
	}

	if err := s.transport.Enable(); err != nil {
		return "", nil, nil, errors.Wrap(ErrTransportUnavailable, err.Error())
	}

	peripheral, err := s.transport.Discover(ctx, s.opts.NamePrefix)
	if err != nil {
		return "", nil, nil, wrapUnless(err, ErrNoDevice, "discover %q", s.opts.NamePrefix)
	}

	name := peripheral.Name()
	s.mu.Lock()
	if s.generation == generation {
		s.deviceName = name
	}
	s.mu.Unlock()

	conn, err := peripheral.Open(ctx)
	if err != nil {
		return "", nil, nil, errors.Wrapf(err, "open %v", name)
	}

	service, err := conn.Service(ctx, s.opts.ServiceUUID)
	if err != nil {
		conn.Close()
		return "", nil, nil, wrapUnless(err, ErrServiceNotFound, "service %v", s.opts.ServiceUUID)
	}

	characteristic, err := service.Characteristic(ctx, s.opts.CharacteristicUUID)
	if err != nil {
		conn.Close()
		return "", nil, nil, wrapUnless(err, ErrCharacteristicNotFound, "characteristic %v", s.opts.CharacteristicUUID)
	}

	conn.OnLinkLost(func() { s.handleLinkLost(generation) })

	err = characteristic.Subscribe(func(payload []byte) { s.handleNotification(generation, payload) })
	if err != nil {
		conn.Close()
		return "", nil, nil, wrapUnless(err, ErrSubscribeRejected, "subscribe %v", s.opts.CharacteristicUUID)
	}

	return name, conn, characteristic, nil
}

func (s *Session) handleNotification(generation uint64, payload []byte) {
	signal := Decode(payload)
	if !signal.IsEmergency() {
		s.logDebugf("ignoring signal %v", signal)
		return
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}

	// The device may push a latched emergency as soon as it is subscribed
	if s.state == CONNECTING {
		s.pending++
		s.mu.Unlock()
		s.logInfof("emergency signal received while connecting, delivering once connected")
		return
	}

	if s.state != CONNECTED {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if s.opts.EmergencyCooldown > 0 && !s.lastEmergency.IsZero() && now.Sub(s.lastEmergency) < s.opts.EmergencyCooldown {
		s.mu.Unlock()
		s.logInfof("emergency signal within cooldown, ignoring")
		return
	}
	s.lastEmergency = now

	observers := make([]Observer, 0, len(s.observers)+1)
	if s.primary != nil {
		observers = append(observers, s.primary)
	}
	for _, entry := range s.observers {
		observers = append(observers, entry.observer)
	}
	s.mu.Unlock()

	s.logInfof(colors.Red("emergency signal received"))
	for _, observer := range observers {
		notify(observer)
	}
}

func (s *Session) handleLinkLost(generation uint64) {
	s.mu.Lock()
	if s.generation != generation || s.state == DISCONNECTED {
		s.mu.Unlock()
		return
	}

	conn, name := s.conn, s.deviceName
	s.clearLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.logErrorf("link to %v lost", name)
}

func (s *Session) resetIfGeneration(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation == generation {
		s.clearLocked()
	}
}

func (s *Session) clearLocked() {
	s.state = DISCONNECTED
	s.deviceName = ""
	s.conn = nil
	s.characteristic = nil
	s.pending = 0
	s.generation++
}

func (s *Session) logInfof(template string, args ...interface{}) {
	logg.Infof(colors.Blue("[device link] ")+template, args...)
}

func (s *Session) logDebugf(template string, args ...interface{}) {
	logg.Debugf(colors.Blue("[device link] ")+template, args...)
}

func (s *Session) logErrorf(template string, args ...interface{}) {
	logg.Errorf(colors.Red("[device link] ")+template, args...)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func notify(observer Observer) {
	defer func() {
		if r := recover(); r != nil {
			logg.Errorf(colors.Red("[device link] ")+"observer panic: %v", r)
		}
	}()

	observer.OnEmergencyDetected()
}

func teardown(conn Connection, characteristic Characteristic) {
	if characteristic != nil {
		if err := characteristic.Unsubscribe(); err != nil {
			logg.Warnf("unsubscribe failed: %v", err)
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			logg.Warnf("close failed: %v", err)
		}
	}
}

// wrapUnless keeps err as is when it already is one of the package
// sentinels, otherwise wraps it under sentinel.
func wrapUnless(err, sentinel error, format string, args ...interface{}) error {
	for _, known := range []error{ErrTransportUnavailable, ErrNoDevice, ErrServiceNotFound, ErrCharacteristicNotFound, ErrSubscribeRejected} {
		if errors.Is(err, known) {
			return errors.Wrapf(err, format, args...)
		}
	}

	return errors.Wrap(sentinel, fmt.Sprintf(format+": %v", append(args, err)...))
}
