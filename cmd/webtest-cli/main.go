package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/integrail/webtest/internal/build"
	"github.com/integrail/webtest/pkg/client"
	"github.com/integrail/webtest/pkg/client/dto"
	"github.com/integrail/webtest/pkg/config"
	"github.com/integrail/webtest/pkg/driver"
	"github.com/integrail/webtest/pkg/runner"
	"github.com/integrail/webtest/pkg/search"
	"github.com/integrail/webtest/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	var (
		cookiesSlice []string
		cookieDomain string
		format       string
		repeat       int
	)
	rootCmd := &cobra.Command{
		Use:          "webtest",
		Version:      build.Version,
		Short:        "webtest drives real browsers against a search engine",
		Long:         "Interactive shell and parallel smoke runner over chrome, firefox and edge sessions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startShell(cmd.Context(), cfg, cookies(cookiesSlice, cookieDomain))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfg.Browser, "browser", "b", cfg.Browser, "Browser to launch: chrome (default), firefox or edge")
	rootCmd.PersistentFlags().BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run browsers without a window")
	rootCmd.PersistentFlags().BoolVar(&cfg.SkipInstall, "skip-install", cfg.SkipInstall, "Do not download playwright browsers")
	rootCmd.PersistentFlags().DurationVarP(&cfg.WaitTimeout, "timeout", "t", cfg.WaitTimeout, "Max time of a single wait")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	rootCmd.PersistentFlags().StringSliceVarP(&cookiesSlice, "cookie", "C", []string{}, "Cookies (name=value) to set in every session")
	rootCmd.PersistentFlags().StringVarP(&cookieDomain, "cookie-domain", "D", ".google.com", "Domain of the cookies")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the search scenarios on parallel workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), cfg, cookies(cookiesSlice, cookieDomain), format, repeat, cmd.OutOrStdout())
		},
	}
	runCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of parallel workers, each with its own browser")
	runCmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "How many times every scenario is queued")
	runCmd.Flags().StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Search engine home page")
	runCmd.Flags().StringVarP(&cfg.Query, "query", "q", cfg.Query, "Query to search for")
	runCmd.Flags().StringSliceVar(&cfg.ConsentLabels, "consent", cfg.ConsentLabels, "Labels of the cookie consent button")
	runCmd.Flags().StringVarP(&cfg.OutDir, "out", "o", cfg.OutDir, "Directory for failure screenshots")
	runCmd.Flags().StringVarP(&format, "format", "f", "yaml", "Report format: yaml or json")
	rootCmd.AddCommand(runCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func cookies(slice []string, domain string) []dto.BrowserCookie {
	var res []dto.BrowserCookie
	for k, v := range util.SliceToMap(slice) {
		res = append(res, dto.BrowserCookie{
			Name:   k,
			Value:  v,
			Domain: domain,
			Path:   "/",
		})
	}
	return res
}

func newManager(cfg config.Config, cookies []dto.BrowserCookie, log logrus.FieldLogger) (*driver.Manager[*driver.Session], *driver.PlaywrightLauncher) {
	launcher := driver.NewPlaywrightLauncher(driver.LaunchOptions{
		Headless:    cfg.Headless,
		Timeout:     cfg.WaitTimeout,
		Cookies:     cookies,
		SkipInstall: cfg.SkipInstall,
	}, log)
	manager := driver.NewManager[*driver.Session](launcher,
		driver.WithBrowser(func() string { return cfg.Browser }),
		driver.WithLogger(log),
	)
	return manager, launcher
}

func startShell(ctx context.Context, cfg config.Config, cookies []dto.BrowserCookie) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logger()
	// log lines would tear the terminal UI apart
	log.SetOutput(io.Discard)

	manager, launcher := newManager(cfg, cookies, log)
	defer func() {
		err = multierr.Combine(err, manager.ReleaseAll(), launcher.Close())
	}()

	shell, err := client.BubbleClient(ctx, manager, cfg.WaitTimeout)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, shell.Close())
	}()

	_, err = tea.NewProgram(shell).Run()
	return err
}

func runScenarios(ctx context.Context, cfg config.Config, cookies []dto.BrowserCookie, format string, repeat int, out io.Writer) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logger()

	manager, launcher := newManager(cfg, cookies, log)
	defer func() {
		err = multierr.Combine(err, manager.ReleaseAll(), launcher.Close())
	}()

	r := runner.New(manager, runner.Config{
		Workers: cfg.Workers,
		Repeat:  repeat,
		Timeout: cfg.WaitTimeout,
		OutDir:  cfg.OutDir,
		Settings: search.Settings{
			HomeURL:       cfg.BaseURL,
			Query:         cfg.Query,
			ConsentLabels: cfg.ConsentLabels,
		},
		Scenarios: search.Scenarios(),
	}, log)

	report, runErr := r.Run(ctx)
	if err := writeReport(out, format, report); err != nil {
		return multierr.Append(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return errors.Errorf("%d of %d scenarios failed", report.Failed, len(report.Results))
	}
	return nil
}

func writeReport(out io.Writer, format string, report dto.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return errors.Wrapf(enc.Encode(report), "failed to write report")
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return errors.Wrapf(err, "failed to write report")
		}
		return enc.Close()
	default:
		return errors.Errorf("unknown report format %q", format)
	}
}
