package dispatch

import (
	"context"
	"strings"

	"github.com/airis-sh/airis/colors"
	"github.com/pkg/errors"
)

// Activator opens a tel:, sms: or mailto: URI with the host's native handler.
type Activator interface {
	Activate(ctx context.Context, uri string) error
}

type ActivatorFunc func(ctx context.Context, uri string) error

func (fn ActivatorFunc) Activate(ctx context.Context, uri string) error {
	return fn(ctx, uri)
}

// LogActivator only logs the URI, used in demo mode where nothing should
// actually ring or open.
var LogActivator = ActivatorFunc(func(ctx context.Context, uri string) error {
	logg.Infof(colors.Cyan("[demo handoff] ")+"%v", uri)
	return nil
})

// HostDispatcher hands notifications to the operating system via URI
// activation. Calls and SMS get one fallback attempt, email does not.
type HostDispatcher struct {
	primary     Activator
	fallback    Activator
	productName string
}

func NewHostDispatcher(primary, fallback Activator, productName string) *HostDispatcher {
	return &HostDispatcher{
		primary:     primary,
		fallback:    fallback,
		productName: productName,
	}
}

func (hd *HostDispatcher) CallContact(ctx context.Context, phone string) error {
	logg.Infof("Calling emergency contact: %v", phone)
	return hd.handoff(ctx, CallURI(phone), true)
}

func (hd *HostDispatcher) SendSMS(ctx context.Context, phone, message string) error {
	logg.Infof("Sending SMS to: %v", phone)
	return hd.handoff(ctx, SMSURI(phone, message), true)
}

func (hd *HostDispatcher) SendEmail(ctx context.Context, email, message string) error {
	return hd.SendEmailBatch(ctx, []string{email}, message)
}

func (hd *HostDispatcher) SendEmailBatch(ctx context.Context, emails []string, message string) error {
	logg.Infof("Sending email to: %v", emails)
	return hd.handoff(ctx, MailtoURI(emails, EmailSubject(hd.productName), message), false)
}

func (hd *HostDispatcher) handoff(ctx context.Context, uri string, withFallback bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrHandoffFailed, "panic while opening %v: %v", scheme(uri), r)
		}
	}()

	primaryErr := hd.primary.Activate(ctx, uri)
	if primaryErr == nil {
		return nil
	}

	if !withFallback || hd.fallback == nil {
		return errors.Wrapf(ErrHandoffFailed, "%v: %v", scheme(uri), primaryErr)
	}

	logg.Warnf("handoff of %v failed, trying fallback: %v", scheme(uri), primaryErr)

	fallbackErr := hd.fallback.Activate(ctx, uri)
	if fallbackErr != nil {
		return errors.Wrapf(ErrHandoffFailed, "%v: %v (fallback: %v)", scheme(uri), primaryErr, fallbackErr)
	}

	return nil
}

// scheme keeps message bodies and numbers out of error strings
func scheme(uri string) string {
	if i := strings.Index(uri, ":"); i > 0 {
		return uri[:i]
	}
	return "unknown"
}
