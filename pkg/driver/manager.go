package driver

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Handle is a live browser session owned by exactly one worker.
type Handle interface {
	Quit() error
}

// Launcher constructs a new session of the given kind.
type Launcher[H Handle] interface {
	Launch(ctx context.Context, kind Kind) (H, error)
}

type LauncherFunc[H Handle] func(ctx context.Context, kind Kind) (H, error)

func (f LauncherFunc[H]) Launch(ctx context.Context, kind Kind) (H, error) { return f(ctx, kind) }

type Option func(m *managerOpts)

type managerOpts struct {
	browser func() string
	log     logrus.FieldLogger
}

// WithBrowser sets the source of the browser setting. It is read once per session construction.
func WithBrowser(browser func() string) Option {
	return func(o *managerOpts) {
		o.browser = browser
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *managerOpts) {
		o.log = log
	}
}

// Manager keeps at most one live session per worker. Sessions are created lazily
// on Acquire and destroyed on Release; a released session is never handed out again.
//
// Workers are identified by an explicit id (a test name, a goroutine index) rather
// than by goroutine identity. Different workers never contend on the same slot.
type Manager[H Handle] struct {
	mu       sync.Mutex
	slots    map[string]*slot[H]
	launcher Launcher[H]
	opts     managerOpts
}

type slot[H Handle] struct {
	mu     sync.Mutex
	handle H
	live   bool
}

func NewManager[H Handle](launcher Launcher[H], opts ...Option) *Manager[H] {
	o := managerOpts{
		browser: func() string { return "" },
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[H]{
		slots:    make(map[string]*slot[H]),
		launcher: launcher,
		opts:     o,
	}
}

func (m *Manager[H]) slotFor(worker string) *slot[H] {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[worker]
	if !ok {
		s = &slot[H]{}
		m.slots[worker] = s
	}
	return s
}

// Acquire returns the worker's live session, launching one if the worker holds none.
// Launch failures are returned as is and leave the worker without a session.
func (m *Manager[H]) Acquire(ctx context.Context, worker string) (H, error) {
	s := m.slotFor(worker)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live {
		return s.handle, nil
	}

	kind := ParseKind(m.opts.browser())
	log := m.opts.log.WithFields(logrus.Fields{"worker": worker, "browser": kind})
	log.Debug("launching browser session")

	h, err := m.launcher.Launch(ctx, kind)
	if err != nil {
		var zero H
		return zero, errors.Wrapf(err, "failed to launch %s session for worker %q", kind, worker)
	}
	s.handle = h
	s.live = true
	log.Info("browser session started")
	return h, nil
}

// Release quits the worker's session and forgets it. It is a no-op when the worker
// holds no session. A Quit failure is returned, but the slot is cleared anyway.
func (m *Manager[H]) Release(worker string) error {
	m.mu.Lock()
	s, ok := m.slots[worker]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return nil
	}

	h := s.handle
	var zero H
	s.handle = zero
	s.live = false

	log := m.opts.log.WithField("worker", worker)
	if err := h.Quit(); err != nil {
		log.WithError(err).Warn("browser session did not quit cleanly")
		return errors.Wrapf(err, "failed to quit session of worker %q", worker)
	}
	log.Info("browser session released")
	return nil
}

// ReleaseAll releases every worker's session and returns the combined errors.
func (m *Manager[H]) ReleaseAll() error {
	m.mu.Lock()
	workers := lo.Keys(m.slots)
	m.mu.Unlock()

	var err error
	for _, worker := range workers {
		err = multierr.Append(err, m.Release(worker))
	}
	return err
}

// Workers lists the ids of workers that currently hold a live session.
func (m *Manager[H]) Workers() []string {
	m.mu.Lock()
	slots := lo.Entries(m.slots)
	m.mu.Unlock()

	var res []string
	for _, e := range slots {
		e.Value.mu.Lock()
		if e.Value.live {
			res = append(res, e.Key)
		}
		e.Value.mu.Unlock()
	}
	sort.Strings(res)
	return res
}
