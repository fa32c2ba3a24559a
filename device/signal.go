package device

// Signal is the value of one notification from the device.
type Signal byte

const (
	SIGNAL_CLEAR     Signal = 0
	SIGNAL_EMERGENCY Signal = 1
)

// Decode reads a notification payload. The first byte is the signal, an
// empty payload decodes as SIGNAL_CLEAR. Values above 1 are reserved and
// come back unchanged so callers can log them.
func Decode(payload []byte) Signal {
	if len(payload) == 0 {
		return SIGNAL_CLEAR
	}

	return Signal(payload[0])
}

func (s Signal) IsEmergency() bool {
	return s == SIGNAL_EMERGENCY
}
