package driver

import (
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
)

// Session is a running browser with one isolated context and its active page.
type Session struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time

	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page
}

// Quit closes the session's context and browser, terminating the browser process.
func (s *Session) Quit() error {
	err := multierr.Combine(s.Context.Close(), s.Browser.Close())
	return errors.Wrapf(err, "failed to quit %s session %s", s.Kind, s.ID)
}
