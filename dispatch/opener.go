package dispatch

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/skratchdot/open-golang/open"
)

// SystemActivator opens URIs with the platform's default handler
// (open on macOS, start on Windows, xdg-open elsewhere).
type SystemActivator struct{}

func (SystemActivator) Activate(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return errors.Wrap(open.Run(uri), "system open")
}

// BrowserActivator hands the URI to a browser, which forwards tel:, sms:
// and mailto: to whatever the desktop registered for them.
type BrowserActivator struct{}

func (BrowserActivator) Activate(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return errors.Wrap(browser.OpenURL(uri), "browser open")
}

// CommandActivator opens URIs by running a user configured command with the
// URI as its last argument, e.g. 'gio open tel:5551234'.
type CommandActivator struct {
	Command []string
}

func NewCommandActivator(command []string) *CommandActivator {
	return &CommandActivator{Command: command}
}

func (ca *CommandActivator) Activate(ctx context.Context, uri string) error {
	if len(ca.Command) == 0 {
		return errors.New("no open command configured")
	}

	args := append(append([]string{}, ca.Command[1:]...), uri)
	output, err := exec.CommandContext(ctx, ca.Command[0], args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%v: %v", ca.Command[0], strings.TrimSpace(string(output)))
	}

	return nil
}

// activatorFor uses the configured command when there is one, 'fallback' otherwise
func activatorFor(command []string, fallback Activator) Activator {
	if len(command) == 0 {
		return fallback
	}
	return NewCommandActivator(command)
}
