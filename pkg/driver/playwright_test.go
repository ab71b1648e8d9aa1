package driver

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/integrail/webtest/pkg/client/dto"
)

func TestParseKind(t *testing.T) {
	RegisterTestingT(t)

	Expect(ParseKind("firefox")).To(Equal(Firefox))
	Expect(ParseKind(" EDGE")).To(Equal(Edge))
	Expect(ParseKind("Chrome")).To(Equal(Chrome))
	Expect(ParseKind("opera")).To(Equal(DefaultKind))
	Expect(ParseKind("")).To(Equal(DefaultKind))
}

func TestChromeLaunchOptions(t *testing.T) {
	RegisterTestingT(t)

	opts := launchOptions(Chrome, LaunchOptions{Headless: true})
	Expect(opts.Args).To(ConsistOf("--start-maximized", "--disable-blink-features=AutomationControlled"))
	Expect(opts.Channel).To(BeNil())
	Expect(lo.FromPtr(opts.Headless)).To(BeTrue())

	ctxOpts := contextOptions(Chrome)
	Expect(lo.FromPtr(ctxOpts.NoViewport)).To(BeTrue())
}

func TestFirefoxLaunchOptions(t *testing.T) {
	RegisterTestingT(t)

	opts := launchOptions(Firefox, LaunchOptions{})
	Expect(opts.Args).To(BeEmpty())
	Expect(opts.Channel).To(BeNil())
	Expect(lo.FromPtr(opts.Headless)).To(BeFalse())
	Expect(contextOptions(Firefox).NoViewport).To(BeNil())
}

func TestEdgeLaunchOptions(t *testing.T) {
	RegisterTestingT(t)

	opts := launchOptions(Edge, LaunchOptions{})
	Expect(lo.FromPtr(opts.Channel)).To(Equal("msedge"))
	Expect(opts.Args).To(BeEmpty())
	Expect(contextOptions(Edge).NoViewport).To(BeNil())
}

func TestToPlaywrightCookies(t *testing.T) {
	RegisterTestingT(t)

	cookies := toPlaywrightCookies([]dto.BrowserCookie{
		{Name: "CONSENT", Value: "YES+", Domain: ".google.com", Secure: true},
		{Name: "NID", Value: "1", Domain: ".google.com", Path: "/search"},
	})
	Expect(cookies).To(HaveLen(2))
	Expect(cookies[0].Name).To(Equal("CONSENT"))
	Expect(lo.FromPtr(cookies[0].Path)).To(Equal("/"))
	Expect(lo.FromPtr(cookies[0].Secure)).To(BeTrue())
	Expect(lo.FromPtr(cookies[1].Path)).To(Equal("/search"))
	Expect(lo.FromPtr(cookies[1].Domain)).To(Equal(".google.com"))
}

func TestNewPlaywrightLauncherDefaultsTimeout(t *testing.T) {
	RegisterTestingT(t)

	l := NewPlaywrightLauncher(LaunchOptions{}, nil)
	Expect(l.opts.Timeout).To(Equal(DefaultTimeout))
	Expect(l.Close()).To(Succeed())
}

type (
	pwBrowser = playwright.Browser
	pwContext = playwright.BrowserContext
	pwPage    = playwright.Page
)

type fakePage struct {
	pwPage
	timeout float64
}

func (p *fakePage) SetDefaultTimeout(timeout float64) { p.timeout = timeout }

type fakeContext struct {
	pwContext
	page       *fakePage
	scripts    []string
	cookies    []playwright.OptionalCookie
	newPageErr error
}

func (c *fakeContext) AddInitScript(script playwright.Script) error {
	c.scripts = append(c.scripts, lo.FromPtr(script.Content))
	return nil
}

func (c *fakeContext) AddCookies(cookies []playwright.OptionalCookie) error {
	c.cookies = append(c.cookies, cookies...)
	return nil
}

func (c *fakeContext) NewPage() (playwright.Page, error) {
	if c.newPageErr != nil {
		return nil, c.newPageErr
	}
	return c.page, nil
}

type fakeBrowser struct {
	pwBrowser
	bctx     *fakeContext
	closeErr error
	closed   int
}

func (b *fakeBrowser) NewContext(...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	return b.bctx, nil
}

func (b *fakeBrowser) Close(...playwright.BrowserCloseOptions) error {
	b.closed++
	return b.closeErr
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{bctx: &fakeContext{page: &fakePage{}}}
}

func TestNewSessionPreparesChrome(t *testing.T) {
	RegisterTestingT(t)
	browser := newFakeBrowser()

	session, err := newSession(browser, Chrome, LaunchOptions{
		Timeout: 3 * time.Second,
		Cookies: []dto.BrowserCookie{{Name: "CONSENT", Value: "YES+", Domain: ".google.com"}},
	})
	Expect(err).To(BeNil())
	Expect(session.ID).NotTo(BeEmpty())
	Expect(session.Kind).To(Equal(Chrome))
	Expect(session.Page).To(BeIdenticalTo(browser.bctx.page))
	Expect(browser.bctx.scripts).To(ConsistOf(hideWebdriverScript))
	Expect(browser.bctx.cookies).To(HaveLen(1))
	Expect(browser.bctx.page.timeout).To(Equal(float64(3000)))
	Expect(browser.closed).To(BeZero())
}

func TestNewSessionSkipsInitScriptForFirefox(t *testing.T) {
	RegisterTestingT(t)
	browser := newFakeBrowser()

	_, err := newSession(browser, Firefox, LaunchOptions{Timeout: DefaultTimeout})
	Expect(err).To(BeNil())
	Expect(browser.bctx.scripts).To(BeEmpty())
	Expect(browser.bctx.cookies).To(BeEmpty())
}

func TestNewSessionClosesBrowserOnFailure(t *testing.T) {
	RegisterTestingT(t)
	crashed := errors.New("target closed")

	browser := newFakeBrowser()
	browser.bctx.newPageErr = crashed
	_, err := newSession(browser, Chrome, LaunchOptions{})
	Expect(errors.Is(err, crashed)).To(BeTrue())
	Expect(browser.closed).To(Equal(1))
	Expect(multierr.Errors(err)).To(HaveLen(1))

	browser = newFakeBrowser()
	browser.bctx.newPageErr = crashed
	browser.closeErr = errors.New("browser has been closed")
	_, err = newSession(browser, Chrome, LaunchOptions{})
	Expect(browser.closed).To(Equal(1))
	Expect(multierr.Errors(err)).To(HaveLen(2))
	Expect(err).To(MatchError(ContainSubstring("failed to close chrome")))
}
