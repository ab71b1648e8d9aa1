package search

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/integrail/webtest/pkg/client"
)

const (
	SearchInput  = `[name="q"]`
	ResultMarker = "search?q="
	TitleMarker  = "Google"
)

// Settings parameterizes the search scenarios.
type Settings struct {
	HomeURL       string
	Query         string
	ConsentLabels []string
}

// ConsentSelector matches the consent dialog button carrying the given label.
func ConsentSelector(label string) string {
	return fmt.Sprintf("xpath=//button/div[contains(text(), %s)]", xpathLiteral(label))
}

// xpathLiteral quotes s as an XPath 1.0 string, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, part := range parts {
		parts[i] = "'" + part + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}

// AcceptCookies dismisses the cookie consent dialog if one is shown. A missing
// dialog is not an error; any other failure is.
func AcceptCookies(p client.Program, labels []string) (bool, error) {
	for _, label := range labels {
		clicked, err := p.TryClick(ConsentSelector(label))
		if err != nil {
			return false, errors.Wrapf(err, "failed to accept cookies")
		}
		if clicked {
			return true, nil
		}
	}
	return false, nil
}

func open(p client.Program, s Settings) error {
	if err := p.Navigate(s.HomeURL); err != nil {
		return err
	}
	_, err := AcceptCookies(p, s.ConsentLabels)
	return err
}

// PageTitle checks the home page title names the search engine.
func PageTitle(p client.Program, s Settings) error {
	if err := open(p, s); err != nil {
		return err
	}
	title, err := p.Title()
	if err != nil {
		return err
	}
	if !strings.Contains(title, TitleMarker) {
		return errors.Errorf("title %q does not contain %q", title, TitleMarker)
	}
	return nil
}

// SearchBoxVisible checks the search input is present and displayed.
func SearchBoxVisible(p client.Program, s Settings) error {
	if err := open(p, s); err != nil {
		return err
	}
	if err := p.WaitReady(SearchInput); err != nil {
		return err
	}
	visible, err := p.IsVisible(SearchInput)
	if err != nil {
		return err
	}
	if !visible {
		return errors.Wrapf(client.ErrNotVisible, "search box %s", SearchInput)
	}
	return nil
}

// PerformSearch types the query, submits it and waits for the results page.
// It returns the final URL.
func PerformSearch(p client.Program, s Settings) (string, error) {
	if err := open(p, s); err != nil {
		return "", err
	}
	if err := p.WaitVisible(SearchInput); err != nil {
		return "", err
	}
	if err := p.SendKeys(SearchInput, s.Query); err != nil {
		return "", err
	}
	if err := p.Submit(SearchInput); err != nil {
		return "", err
	}
	if err := p.WaitURLContains(ResultMarker); err != nil {
		return "", err
	}
	url, err := p.GetURL()
	if err != nil {
		return "", err
	}
	if !strings.Contains(url, ResultMarker) {
		return url, errors.Errorf("url %q is not a results page", url)
	}
	return url, nil
}

type Scenario struct {
	Name string
	Run  func(p client.Program, s Settings) error
}

// Scenarios lists the checks run by the CLI runner, in order.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "page-title", Run: PageTitle},
		{Name: "search-box-visible", Run: SearchBoxVisible},
		{Name: "perform-search", Run: func(p client.Program, s Settings) error {
			_, err := PerformSearch(p, s)
			return err
		}},
	}
}
