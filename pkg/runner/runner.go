package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/integrail/webtest/pkg/client"
	"github.com/integrail/webtest/pkg/client/dto"
	"github.com/integrail/webtest/pkg/driver"
	"github.com/integrail/webtest/pkg/search"
)

// Sessions hands out one session per worker.
type Sessions interface {
	Acquire(ctx context.Context, worker string) (*driver.Session, error)
	Release(worker string) error
}

type Config struct {
	Workers   int
	Repeat    int           // how many times every scenario is queued
	Timeout   time.Duration // wait budget of each program
	OutDir    string        // failure screenshots go here, none are taken when empty
	Settings  search.Settings
	Scenarios []search.Scenario
}

type Runner struct {
	sessions Sessions
	cfg      Config
	log      logrus.FieldLogger
}

func New(sessions Sessions, cfg Config, log logrus.FieldLogger) *Runner {
	cfg.Workers = lo.Max([]int{cfg.Workers, 1})
	cfg.Repeat = lo.Max([]int{cfg.Repeat, 1})
	if cfg.Timeout == 0 {
		cfg.Timeout = driver.DefaultTimeout
	}
	return &Runner{sessions: sessions, cfg: cfg, log: log}
}

type job struct {
	index    int
	scenario search.Scenario
}

type indexed struct {
	index  int
	result dto.Result
}

// Run executes the scenarios on parallel workers. Each worker owns its own session,
// acquired before its first scenario and released when the queue is drained.
// Scenario failures end up in the report; failing to start or stop a session
// fails the run.
func (r *Runner) Run(ctx context.Context) (dto.Report, error) {
	jobs := make(chan job)
	var (
		mu      sync.Mutex
		results []indexed
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		i := 0
		for n := 0; n < r.cfg.Repeat; n++ {
			for _, sc := range r.cfg.Scenarios {
				select {
				case jobs <- job{index: i, scenario: sc}:
					i++
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return nil
	})

	for w := 0; w < r.cfg.Workers; w++ {
		worker := fmt.Sprintf("worker-%d", w)
		g.Go(func() (err error) {
			log := r.log.WithField("worker", worker)
			var session *driver.Session
			defer func() {
				if session != nil {
					err = multierr.Append(err, r.sessions.Release(worker))
				}
			}()
			for j := range jobs {
				if session == nil {
					if session, err = r.sessions.Acquire(ctx, worker); err != nil {
						return err
					}
				}
				res := r.runOne(log, worker, session, j.scenario)
				mu.Lock()
				results = append(results, indexed{index: j.index, result: res})
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	report := dto.Report{
		Workers: r.cfg.Workers,
		Results: lo.Map(results, func(i indexed, _ int) dto.Result { return i.result }),
	}
	for _, res := range report.Results {
		report.Browser = res.Browser
		if res.Passed() {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report, errors.Wrapf(err, "run aborted")
}

func (r *Runner) runOne(log logrus.FieldLogger, worker string, session *driver.Session, sc search.Scenario) dto.Result {
	log = log.WithFields(logrus.Fields{"scenario": sc.Name, "session": session.ID})
	p := client.ForSession(session, client.LogReporter{Log: log}, client.WithTimeout(r.cfg.Timeout))

	started := time.Now()
	err := sc.Run(p, r.cfg.Settings)
	res := dto.Result{
		Scenario:  sc.Name,
		Worker:    worker,
		Browser:   session.Kind.String(),
		SessionID: session.ID,
		Duration:  time.Since(started),
	}
	res.URL, _ = p.GetURL()
	if err == nil {
		log.WithField("duration", res.Duration).Info("scenario passed")
		return res
	}

	res.Error = lo.ToPtr(err.Error())
	log.WithError(err).Error("scenario failed")
	if r.cfg.OutDir != "" {
		fileName := filepath.Join(r.cfg.OutDir, fmt.Sprintf("%s-%s-%d.png", sc.Name, worker, started.UnixNano()))
		if shotErr := p.SaveScreenshot(sc.Name, fileName); shotErr != nil {
			log.WithError(shotErr).Warn("failed to save failure screenshot")
		} else {
			res.Screenshot = fileName
		}
	}
	return res
}
