package driver

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/integrail/webtest/pkg/client/dto"
)

const (
	DefaultTimeout = 10 * time.Second

	argStartMaximized   = "--start-maximized"
	argHideAutomation   = "--disable-blink-features=AutomationControlled"
	edgeChannel         = "msedge"
	hideWebdriverScript = "Object.defineProperty(navigator, 'webdriver', {get: () => undefined})"
)

type LaunchOptions struct {
	Headless    bool                `json:"headless" yaml:"headless"`
	Timeout     time.Duration       `json:"timeout" yaml:"timeout"`         // default timeout of every page operation
	Cookies     []dto.BrowserCookie `json:"cookies" yaml:"cookies"`         // cookies to set before the first navigation
	SkipInstall bool                `json:"skipInstall" yaml:"skipInstall"` // use already installed driver and browsers
}

// PlaywrightLauncher launches sessions through a single Playwright runtime that is
// started on first use and shared by all sessions it creates.
type PlaywrightLauncher struct {
	mu   sync.Mutex
	pw   *playwright.Playwright
	opts LaunchOptions
	log  logrus.FieldLogger
}

func NewPlaywrightLauncher(opts LaunchOptions, log logrus.FieldLogger) *PlaywrightLauncher {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &PlaywrightLauncher{opts: opts, log: log}
}

func (l *PlaywrightLauncher) runtime() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return l.pw, nil
	}

	// driver output would interfere with the interactive shell
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if !l.opts.SkipInstall {
		l.log.Info("installing playwright driver and browsers")
		if err := playwright.Install(runOpts); err != nil {
			return nil, errors.Wrapf(err, "failed to install playwright")
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start playwright")
	}
	l.pw = pw
	return pw, nil
}

// Launch starts a browser of the given kind with a fresh context and page.
func (l *PlaywrightLauncher) Launch(ctx context.Context, kind Kind) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := l.runtime()
	if err != nil {
		return nil, err
	}

	browser, err := browserType(pw, kind).Launch(launchOptions(kind, l.opts))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to launch %s", kind)
	}

	return newSession(browser, kind, l.opts)
}

// newSession opens a context and page on a launched browser. The browser is
// closed if any step fails.
func newSession(browser playwright.Browser, kind Kind, opts LaunchOptions) (*Session, error) {
	bctx, page, err := openPage(browser, kind, opts)
	if err != nil {
		return nil, multierr.Append(err, errors.Wrapf(browser.Close(), "failed to close %s", kind))
	}
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now(),
		Browser:   browser,
		Context:   bctx,
		Page:      page,
	}, nil
}

func openPage(browser playwright.Browser, kind Kind, opts LaunchOptions) (playwright.BrowserContext, playwright.Page, error) {
	bctx, err := browser.NewContext(contextOptions(kind))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create browser context")
	}
	if kind == Chrome {
		if err := bctx.AddInitScript(playwright.Script{Content: lo.ToPtr(hideWebdriverScript)}); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to install init script")
		}
	}
	if len(opts.Cookies) > 0 {
		if err := bctx.AddCookies(toPlaywrightCookies(opts.Cookies)); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to set cookies")
		}
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create page")
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	return bctx, page, nil
}

// Close stops the Playwright runtime. Sessions still open are terminated with it.
func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	return errors.Wrapf(err, "failed to stop playwright")
}

func browserType(pw *playwright.Playwright, kind Kind) playwright.BrowserType {
	if kind == Firefox {
		return pw.Firefox
	}
	return pw.Chromium
}

func launchOptions(kind Kind, opts LaunchOptions) playwright.BrowserTypeLaunchOptions {
	res := playwright.BrowserTypeLaunchOptions{
		Headless: lo.ToPtr(opts.Headless),
	}
	switch kind {
	case Firefox:
	case Edge:
		res.Channel = lo.ToPtr(edgeChannel)
	default:
		res.Args = []string{argStartMaximized, argHideAutomation}
	}
	return res
}

func contextOptions(kind Kind) playwright.BrowserNewContextOptions {
	if kind == Chrome {
		// let the maximized window define the viewport
		return playwright.BrowserNewContextOptions{NoViewport: lo.ToPtr(true)}
	}
	return playwright.BrowserNewContextOptions{}
}

func toPlaywrightCookies(cookies []dto.BrowserCookie) []playwright.OptionalCookie {
	return lo.Map(cookies, func(c dto.BrowserCookie, _ int) playwright.OptionalCookie {
		return playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   lo.ToPtr(c.Domain),
			Path:     lo.ToPtr(lo.If(c.Path == "", "/").Else(c.Path)),
			HttpOnly: lo.ToPtr(c.HTTPOnly),
			Secure:   lo.ToPtr(c.Secure),
		}
	})
}
