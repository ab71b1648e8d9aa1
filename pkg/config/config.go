package config

import (
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Browser       string        `json:"browser" yaml:"browser" envconfig:"WEBTEST_BROWSER"`                     // chrome (default), firefox or edge
	Headless      bool          `json:"headless" yaml:"headless" envconfig:"WEBTEST_HEADLESS"`                  // run browsers without a window
	SkipInstall   bool          `json:"skipInstall" yaml:"skipInstall" envconfig:"WEBTEST_SKIP_INSTALL"`        // do not download playwright browsers
	WaitTimeout   time.Duration `json:"waitTimeout" yaml:"waitTimeout" envconfig:"WEBTEST_WAIT_TIMEOUT"`        // budget of a single explicit wait
	BaseURL       string        `json:"baseURL" yaml:"baseURL" envconfig:"WEBTEST_BASE_URL"`                    // search engine home page
	Query         string        `json:"query" yaml:"query" envconfig:"WEBTEST_QUERY"`                           // text typed into the search box
	ConsentLabels []string      `json:"consentLabels" yaml:"consentLabels" envconfig:"WEBTEST_CONSENT_LABELS"` // button labels accepting the cookie banner
	Workers       int           `json:"workers" yaml:"workers" envconfig:"WEBTEST_WORKERS"`                     // parallel workers of the run command
	OutDir        string        `json:"outDir" yaml:"outDir" envconfig:"WEBTEST_OUT_DIR"`                       // where screenshots are written
	LogLevel      string        `json:"logLevel" yaml:"logLevel" envconfig:"WEBTEST_LOG_LEVEL"`
}

func DefaultConfig() Config {
	return Config{
		WaitTimeout:   10 * time.Second,
		BaseURL:       "https://www.google.com",
		Query:         "Selenium",
		ConsentLabels: []string{"Piekrist visiem"},
		Workers:       1,
		OutDir:        "output",
		LogLevel:      logrus.InfoLevel.String(),
	}
}

// Load reads WEBTEST_* variables from the process environment over DefaultConfig.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable lookup.
func LoadFrom(lookup func(key string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("", &cfg, lookup); err != nil {
		return cfg, errors.Wrapf(err, "failed to read configuration from environment")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.WaitTimeout <= 0 {
		return errors.Errorf("wait timeout must be positive, got %s", c.WaitTimeout)
	}
	if c.Workers < 1 {
		return errors.Errorf("at least one worker is required, got %d", c.Workers)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level")
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
