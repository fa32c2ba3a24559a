package device

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

// BLETransport is the Transport backed by the host's Bluetooth LE adapter.
type BLETransport struct {
	adapter *bluetooth.Adapter

	mu         sync.Mutex
	enabled    bool
	linkLost   map[string]func()
	handlerSet bool
}

func NewBLETransport() *BLETransport {
	return &BLETransport{adapter: bluetooth.DefaultAdapter, linkLost: map[string]func(){}}
}

func (bt *BLETransport) Enable() error {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.enabled {
		return nil
	}

	if err := bt.adapter.Enable(); err != nil {
		return errors.Wrap(ErrTransportUnavailable, err.Error())
	}
	bt.enabled = true

	if !bt.handlerSet {
		bt.adapter.SetConnectHandler(bt.handleConnectEvent)
		bt.handlerSet = true
	}

	return nil
}

// Discover scans until an advertisement whose local name starts with
// namePrefix shows up.
func (bt *BLETransport) Discover(ctx context.Context, namePrefix string) (Peripheral, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- bt.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !strings.HasPrefix(result.LocalName(), namePrefix) {
				return
			}

			select {
			case found <- result:
				adapter.StopScan()
			default:
			}
		})
	}()

	select {
	case result := <-found:
		return &blePeripheral{transport: bt, name: result.LocalName(), address: result.Address}, nil
	case err := <-scanErr:
		if err == nil {
			return nil, ErrNoDevice
		}
		return nil, errors.Wrap(ErrNoDevice, err.Error())
	case <-ctx.Done():
		bt.adapter.StopScan()
		return nil, errors.Wrap(ErrNoDevice, ctx.Err().Error())
	}
}

func (bt *BLETransport) handleConnectEvent(device bluetooth.Device, connected bool) {
	if connected {
		return
	}

	address := device.Address.String()

	bt.mu.Lock()
	onLinkLost := bt.linkLost[address]
	delete(bt.linkLost, address)
	bt.mu.Unlock()

	if onLinkLost != nil {
		onLinkLost()
	}
}

func (bt *BLETransport) watch(address string, fn func()) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.linkLost[address] = fn
}

func (bt *BLETransport) unwatch(address string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	delete(bt.linkLost, address)
}

type blePeripheral struct {
	transport *BLETransport
	name      string
	address   bluetooth.Address
}

func (bp *blePeripheral) Name() string {
	return bp.name
}

func (bp *blePeripheral) Open(ctx context.Context) (Connection, error) {
	type result struct {
		device bluetooth.Device
		err    error
	}
	done := make(chan result, 1)

	go func() {
		device, err := bp.transport.adapter.Connect(bp.address, bluetooth.ConnectionParams{})
		done <- result{device: device, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return &bleConnection{transport: bp.transport, device: res.device, address: bp.address.String()}, nil
	case <-ctx.Done():
		// A late connect is closed as soon as it lands
		go func() {
			if res := <-done; res.err == nil {
				res.device.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

type bleConnection struct {
	transport *BLETransport
	device    bluetooth.Device
	address   string
}

func (bc *bleConnection) Service(ctx context.Context, uuid string) (Service, error) {
	serviceUUID, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, errors.Wrapf(ErrServiceNotFound, "invalid uuid %v", uuid)
	}

	services, err := bc.device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, errors.Wrap(ErrServiceNotFound, err.Error())
	}

	if len(services) == 0 {
		return nil, ErrServiceNotFound
	}

	return &bleService{service: services[0]}, nil
}

func (bc *bleConnection) OnLinkLost(fn func()) {
	bc.transport.watch(bc.address, fn)
}

func (bc *bleConnection) Close() error {
	bc.transport.unwatch(bc.address)
	return bc.device.Disconnect()
}

type bleService struct {
	service bluetooth.DeviceService
}

func (bs *bleService) Characteristic(ctx context.Context, uuid string) (Characteristic, error) {
	charUUID, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, errors.Wrapf(ErrCharacteristicNotFound, "invalid uuid %v", uuid)
	}

	chars, err := bs.service.DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil {
		return nil, errors.Wrap(ErrCharacteristicNotFound, err.Error())
	}

	if len(chars) == 0 {
		return nil, ErrCharacteristicNotFound
	}

	return &bleCharacteristic{characteristic: chars[0]}, nil
}

type bleCharacteristic struct {
	characteristic bluetooth.DeviceCharacteristic
}

func (bc *bleCharacteristic) Subscribe(handler func(payload []byte)) error {
	if err := bc.characteristic.EnableNotifications(handler); err != nil {
		return errors.Wrap(ErrSubscribeRejected, err.Error())
	}
	return nil
}

func (bc *bleCharacteristic) Unsubscribe() error {
	return bc.characteristic.EnableNotifications(nil)
}
