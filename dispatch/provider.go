package dispatch

import (
	"github.com/airis-sh/airis/shared"
	"github.com/pkg/errors"
)

const (
	HOST_PROVIDER   = "host"
	TWILIO_PROVIDER = "twilio"
)

// New builds the Dispatcher selected by 'airis.dispatch.provider'. In demo
// mode every handoff is only logged.
func New(config shared.AppConfig, demo bool) (Dispatcher, error) {
	productName := config.Airis.Alert.ProductName
	if productName == "" {
		productName = DEFAULT_PRODUCT_NAME
	}

	if demo {
		return NewHostDispatcher(LogActivator, LogActivator, productName), nil
	}

	host := NewHostDispatcher(
		activatorFor(config.Airis.Dispatch.OpenCommand, SystemActivator{}),
		activatorFor(config.Airis.Dispatch.FallbackCommand, BrowserActivator{}),
		productName,
	)

	switch config.Airis.Dispatch.Provider {
	case "", HOST_PROVIDER:
		return host, nil
	case TWILIO_PROVIDER:
		twilioConfig := config.Twilio
		if twilioConfig.AccountSid == "" || twilioConfig.AuthToken == "" {
			return nil, errors.New("twilio provider needs 'twilio.accountSid' and 'twilio.authToken'")
		}
		if twilioConfig.FromNumber == "" {
			return nil, errors.New("twilio provider needs 'twilio.fromNumber' for calls")
		}
		return NewTwilioDispatcher(twilioConfig, host), nil
	default:
		return nil, errors.Errorf("unknown dispatch provider %q", config.Airis.Dispatch.Provider)
	}
}
