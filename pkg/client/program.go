package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"
	"github.com/savioxavier/termlink"

	"github.com/integrail/webtest/pkg/driver"
)

var ErrNotVisible = errors.New("element is not visible")

// Program is the scripting surface tests use to drive one browser page.
// Every wait is bounded by the program timeout.
type Program interface {
	Navigate(url string) error
	NavigateStatus(url string) (int, error)
	Title() (string, error)
	GetURL() (string, error)
	Click(selector string) error
	TryClick(selector string) (bool, error)
	SendKeys(selector, text string) error
	Submit(selector string) error
	Text(selector string) (string, error)
	IsVisible(selector string) (bool, error)
	IsElementPresent(selector string) (bool, error)
	WaitReady(selector string) error
	WaitVisible(selector string) error
	WaitClickable(selector string) error
	WaitURLContains(marker string) error
	TakeScreenshot(name string) ([]byte, error)
	SaveScreenshot(name string, fileName string) error
}

// Page is the part of playwright.Page a Program needs.
type Page interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Title() (string, error)
	URL() string
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
	WaitForURL(url interface{}, options ...playwright.PageWaitForURLOptions) error
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
}

type Reporter interface {
	Report(msg string)
}

type Option func(p *program)

func WithTimeout(timeout time.Duration) Option {
	return func(p *program) {
		p.timeout = timeout
	}
}

func NewProgram(page Page, reporter Reporter, opts ...Option) Program {
	p := &program{
		page:     page,
		reporter: reporter,
		timeout:  driver.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ForSession returns a Program driving the session's active page.
func ForSession(s *driver.Session, reporter Reporter, opts ...Option) Program {
	return NewProgram(s.Page, reporter, opts...)
}

type program struct {
	page     Page
	reporter Reporter
	timeout  time.Duration
}

func (p *program) timeoutMs() *float64 {
	return lo.ToPtr(float64(p.timeout.Milliseconds()))
}

func (p *program) locate(selector string) playwright.Locator {
	return p.page.Locator(selector).First()
}

func (p *program) waitFor(selector string, state *playwright.WaitForSelectorState) error {
	err := p.locate(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: p.timeoutMs(),
	})
	return errors.Wrapf(err, "failed waiting for %q", selector)
}

func (p *program) Navigate(url string) error {
	_, err := p.NavigateStatus(url)
	return err
}

func (p *program) NavigateStatus(url string) (int, error) {
	p.reporter.Report(fmt.Sprintf("Navigating to %s...", url))
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{Timeout: p.timeoutMs()})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to navigate to %s", url)
	}
	if resp == nil {
		// same-document navigation has no response
		return 0, nil
	}
	return resp.Status(), nil
}

func (p *program) Title() (string, error) {
	title, err := p.page.Title()
	return title, errors.Wrapf(err, "failed to read page title")
}

func (p *program) GetURL() (string, error) {
	return p.page.URL(), nil
}

func (p *program) Click(selector string) error {
	p.reporter.Report(fmt.Sprintf("Clicking %q", selector))
	err := p.locate(selector).Click(playwright.LocatorClickOptions{Timeout: p.timeoutMs()})
	return errors.Wrapf(err, "failed to click %q", selector)
}

// TryClick clicks the element if it becomes clickable within the timeout.
// It reports false without an error only when the wait timed out or the
// element stayed disabled; any other failure is returned.
func (p *program) TryClick(selector string) (bool, error) {
	if err := p.WaitClickable(selector); err != nil {
		if errors.Is(err, playwright.ErrTimeout) || errors.Is(err, ErrNotVisible) {
			p.reporter.Report(fmt.Sprintf("Skipping %q: not present", selector))
			return false, nil
		}
		return false, err
	}
	if err := p.Click(selector); err != nil {
		return false, err
	}
	return true, nil
}

func (p *program) SendKeys(selector, text string) error {
	p.reporter.Report(fmt.Sprintf("Typing into %q", selector))
	err := p.locate(selector).PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Timeout: p.timeoutMs()})
	return errors.Wrapf(err, "failed to type into %q", selector)
}

// Submit submits the form owning the element, or presses Enter when it has none.
func (p *program) Submit(selector string) error {
	p.reporter.Report(fmt.Sprintf("Submitting %q", selector))
	loc := p.locate(selector)
	submitted, err := loc.Evaluate(`el => { if (!el.form) return false; el.form.requestSubmit(); return true }`, nil,
		playwright.LocatorEvaluateOptions{Timeout: p.timeoutMs()})
	if err != nil {
		return errors.Wrapf(err, "failed to submit %q", selector)
	}
	if ok, _ := submitted.(bool); ok {
		return nil
	}
	err = loc.Press("Enter", playwright.LocatorPressOptions{Timeout: p.timeoutMs()})
	return errors.Wrapf(err, "failed to submit %q", selector)
}

func (p *program) Text(selector string) (string, error) {
	text, err := p.locate(selector).InnerText(playwright.LocatorInnerTextOptions{Timeout: p.timeoutMs()})
	return text, errors.Wrapf(err, "failed to read text of %q", selector)
}

func (p *program) IsVisible(selector string) (bool, error) {
	visible, err := p.locate(selector).IsVisible()
	return visible, errors.Wrapf(err, "failed to check visibility of %q", selector)
}

func (p *program) IsElementPresent(selector string) (bool, error) {
	count, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, errors.Wrapf(err, "failed to query %q", selector)
	}
	return count > 0, nil
}

// WaitReady waits until the element is attached to the document.
func (p *program) WaitReady(selector string) error {
	return p.waitFor(selector, playwright.WaitForSelectorStateAttached)
}

func (p *program) WaitVisible(selector string) error {
	return p.waitFor(selector, playwright.WaitForSelectorStateVisible)
}

// WaitClickable waits until the element is visible and enabled.
func (p *program) WaitClickable(selector string) error {
	if err := p.WaitVisible(selector); err != nil {
		return err
	}
	enabled, err := p.locate(selector).IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: p.timeoutMs()})
	if err != nil {
		return errors.Wrapf(err, "failed to check %q is enabled", selector)
	}
	if !enabled {
		return errors.Wrapf(ErrNotVisible, "%q is disabled", selector)
	}
	return nil
}

func (p *program) WaitURLContains(marker string) error {
	err := p.page.WaitForURL(func(url string) bool {
		return strings.Contains(url, marker)
	}, playwright.PageWaitForURLOptions{Timeout: p.timeoutMs()})
	return errors.Wrapf(err, "URL did not contain %q", marker)
}

func (p *program) TakeScreenshot(name string) ([]byte, error) {
	p.reporter.Report(fmt.Sprintf("Taking screenshot %q", name))
	shot, err := p.page.Screenshot()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to take screenshot %s", name)
	}
	if len(shot) == 0 {
		return nil, errors.Errorf("screenshot with name %s is empty", name)
	}
	return shot, nil
}

func (p *program) SaveScreenshot(name string, fileName string) error {
	screenshot, err := p.TakeScreenshot(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", fileName)
	}
	if err := os.WriteFile(fileName, screenshot, 0o644); err != nil {
		p.reporter.Report(fmt.Sprintf("failed to save %q to %s: %q", name, fileName, err.Error()))
		return err
	}
	p.reporter.Report(fmt.Sprintf("%q saved to ", name) +
		termlink.ColorLink(name, fmt.Sprintf("file://%s", fileName), "italic green"))
	return nil
}
