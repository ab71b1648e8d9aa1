package search

import (
	"context"
	"os"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/integrail/webtest/pkg/client"
	"github.com/integrail/webtest/pkg/config"
	"github.com/integrail/webtest/pkg/driver"
)

var (
	launcher *driver.PlaywrightLauncher
	sessions *driver.Manager[*driver.Session]
	cfg      config.Config
)

// TestMain owns the process-wide session manager: every test acquires under its
// own name and all remaining sessions are released after the run.
func TestMain(m *testing.M) {
	var err error
	if cfg, err = config.Load(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Logger()
	launcher = driver.NewPlaywrightLauncher(driver.LaunchOptions{
		Headless:    cfg.Headless,
		Timeout:     cfg.WaitTimeout,
		SkipInstall: cfg.SkipInstall,
	}, log)
	sessions = driver.NewManager[*driver.Session](launcher,
		driver.WithBrowser(func() string { return cfg.Browser }),
		driver.WithLogger(log),
	)

	code := m.Run()

	if err := sessions.ReleaseAll(); err != nil {
		log.WithError(err).Error("failed to release sessions")
	}
	if err := launcher.Close(); err != nil {
		log.WithError(err).Error("failed to stop playwright")
	}
	os.Exit(code)
}

func newLocalDebugProgram(t *testing.T) client.Program {
	RegisterTestingT(t)
	if os.Getenv("GITHUB_RUN_ID") != "" {
		t.Skipf("Not intended to run on CI")
	}
	if os.Getenv("WEBTEST_E2E") == "" {
		t.Skipf("Set WEBTEST_E2E=1 to run against a real browser")
	}

	session, err := sessions.Acquire(context.Background(), t.Name())
	Expect(err).To(BeNil())
	t.Cleanup(func() {
		Expect(sessions.Release(t.Name())).To(Succeed())
	})

	again, err := sessions.Acquire(context.Background(), t.Name())
	Expect(err).To(BeNil())
	Expect(again).To(BeIdenticalTo(session))

	return client.ForSession(session, client.LogReporter{Log: cfg.Logger()}, client.WithTimeout(cfg.WaitTimeout))
}

func e2eSettings() Settings {
	return Settings{HomeURL: cfg.BaseURL, Query: cfg.Query, ConsentLabels: cfg.ConsentLabels}
}

func TestGooglePageTitle(t *testing.T) {
	p := newLocalDebugProgram(t)

	Expect(PageTitle(p, e2eSettings())).To(Succeed())
}

func TestGoogleSearchBoxExists(t *testing.T) {
	p := newLocalDebugProgram(t)

	Expect(SearchBoxVisible(p, e2eSettings())).To(Succeed())
}

func TestGooglePerformSearch(t *testing.T) {
	p := newLocalDebugProgram(t)

	url, err := PerformSearch(p, e2eSettings())
	Expect(err).To(BeNil())
	Expect(url).To(ContainSubstring(ResultMarker))
}

func TestGoogleWorkersGetOwnSessions(t *testing.T) {
	p := newLocalDebugProgram(t)
	Expect(p.Navigate(cfg.BaseURL)).To(Succeed())

	other, err := sessions.Acquire(context.Background(), t.Name()+"/other")
	Expect(err).To(BeNil())
	defer func() {
		Expect(sessions.Release(t.Name() + "/other")).To(Succeed())
	}()
	mine, err := sessions.Acquire(context.Background(), t.Name())
	Expect(err).To(BeNil())

	Expect(other.ID).NotTo(Equal(mine.ID))
	Expect(other.Page.URL()).To(Equal("about:blank"))
}
