package device

import (
	"context"

	"github.com/pkg/errors"
)

const (
	DEFAULT_NAME_PREFIX         = "AirMouse"
	DEFAULT_SERVICE_UUID        = "0000ffe0-0000-1000-8000-00805f9b34fb"
	DEFAULT_CHARACTERISTIC_UUID = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

var (
	ErrTransportUnavailable   = errors.New("wireless transport unavailable")
	ErrNoDevice               = errors.New("no matching device found")
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrSubscribeRejected      = errors.New("notification subscription rejected")
)

// Transport is the short-range wireless capability the session runs on.
type Transport interface {
	// Enable powers up the radio. Returns ErrTransportUnavailable when the
	// host has no usable adapter.
	Enable() error

	// Discover blocks until a device whose name starts with namePrefix is
	// found, or ctx is done.
	Discover(ctx context.Context, namePrefix string) (Peripheral, error)
}

// Peripheral is a discovered, not yet connected, device.
type Peripheral interface {
	Name() string
	Open(ctx context.Context) (Connection, error)
}

// Connection is an open link to one peripheral.
type Connection interface {
	Service(ctx context.Context, uuid string) (Service, error)

	// OnLinkLost registers fn to run once if the link drops on its own.
	// It is not called for Close.
	OnLinkLost(fn func())

	Close() error
}

type Service interface {
	Characteristic(ctx context.Context, uuid string) (Characteristic, error)
}

type Characteristic interface {
	Subscribe(handler func(payload []byte)) error
	Unsubscribe() error
}
