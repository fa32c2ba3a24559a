package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type activatorStub struct {
	uris []string
	err  error
}

func (stub *activatorStub) Activate(ctx context.Context, uri string) error {
	stub.uris = append(stub.uris, uri)
	return stub.err
}

func TestHostDispatcherHandoff(t *testing.T) {
	errOpen := errors.New("no handler for scheme")
	ctx := context.Background()

	t.Run("Should hand call to primary activator only when it succeeds", func(t *testing.T) {
		primary, fallback := &activatorStub{}, &activatorStub{}
		hd := NewHostDispatcher(primary, fallback, "Airis-SH")

		assert.Nil(t, hd.CallContact(ctx, "(555) 123-4567"))
		assert.Equal(t, []string{"tel:5551234567"}, primary.uris)
		assert.Empty(t, fallback.uris)
	})

	t.Run("Should try fallback exactly once for SMS", func(t *testing.T) {
		primary, fallback := &activatorStub{err: errOpen}, &activatorStub{}
		hd := NewHostDispatcher(primary, fallback, "Airis-SH")

		assert.Nil(t, hd.SendSMS(ctx, "555-1234", "help"))
		assert.Equal(t, []string{"sms:5551234?body=help"}, fallback.uris)
	})

	t.Run("Should report failure when fallback also fails", func(t *testing.T) {
		primary, fallback := &activatorStub{err: errOpen}, &activatorStub{err: errOpen}
		hd := NewHostDispatcher(primary, fallback, "Airis-SH")

		err := hd.CallContact(ctx, "555-1234")
		assert.True(t, errors.Is(err, ErrHandoffFailed))
		assert.Len(t, primary.uris, 1)
		assert.Len(t, fallback.uris, 1)
		assert.NotContains(t, err.Error(), "5551234")
	})

	t.Run("Should not use fallback for email", func(t *testing.T) {
		primary, fallback := &activatorStub{err: errOpen}, &activatorStub{}
		hd := NewHostDispatcher(primary, fallback, "Airis-SH")

		err := hd.SendEmailBatch(ctx, []string{"lee@x.com", "mom@y.org"}, "help")
		assert.True(t, errors.Is(err, ErrHandoffFailed))
		assert.Empty(t, fallback.uris)
		assert.Contains(t, primary.uris[0], "mailto:lee@x.com,mom@y.org?subject=")
	})

	t.Run("Should turn a panicking activator into an error", func(t *testing.T) {
		panicking := ActivatorFunc(func(ctx context.Context, uri string) error { panic("boom") })
		hd := NewHostDispatcher(panicking, nil, "Airis-SH")

		err := hd.SendEmail(ctx, "lee@x.com", "help")
		assert.True(t, errors.Is(err, ErrHandoffFailed))
	})
}

func TestCommandActivatorWithoutCommand(t *testing.T) {
	err := NewCommandActivator(nil).Activate(context.Background(), "tel:1")
	assert.NotNil(t, err)
}

func TestActivatorFor(t *testing.T) {
	assert.IsType(t, SystemActivator{}, activatorFor(nil, SystemActivator{}))
	assert.IsType(t, BrowserActivator{}, activatorFor([]string{}, BrowserActivator{}))

	configured := activatorFor([]string{"gio", "open"}, SystemActivator{})
	require.IsType(t, &CommandActivator{}, configured)
	assert.Equal(t, []string{"gio", "open"}, configured.(*CommandActivator).Command)
}

func TestDefaultActivatorsRespectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, activator := range []Activator{SystemActivator{}, BrowserActivator{}} {
		err := activator.Activate(ctx, "tel:5551234")
		assert.ErrorIs(t, err, context.Canceled)
	}
}
