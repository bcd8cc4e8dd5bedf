// Package session keeps the forms opened by clients, one per screen instance.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/catalog"
)

// ErrFull is returned by Create when MaxForms forms are already open.
var ErrFull = errors.New("session: too many open forms")

const (
	defaultIdleTTL  = 30 * time.Minute
	defaultMaxForms = 10000
)

type entry struct {
	form     *assessment.Form
	lastSeen time.Time
}

// Store is safe for concurrent use. A form not touched by Create or Get for
// the idle TTL is closed and forgotten.
type Store struct {
	engine   *assessment.Engine
	idleTTL  time.Duration
	maxForms int
	now      func() time.Time
	logger   zerolog.Logger

	mu    sync.Mutex
	forms map[uuid.UUID]*entry

	done     chan struct{}
	doneOnce sync.Once
}

type Option func(*Store)

// WithIdleTTL sets how long an untouched form stays open. Non-positive
// values keep the default of 30m.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithMaxForms caps the number of open forms. Non-positive values keep the
// default of 10000.
func WithMaxForms(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxForms = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(engine *assessment.Engine, opts ...Option) *Store {
	s := &Store{
		engine:   engine,
		idleTTL:  defaultIdleTTL,
		maxForms: defaultMaxForms,
		now:      time.Now,
		logger:   zerolog.Nop(),
		forms:    make(map[uuid.UUID]*entry),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens an empty form for test. Idle forms are evicted first; if the
// store is still full it returns ErrFull.
func (s *Store) Create(test *catalog.Test) (uuid.UUID, *assessment.Form, error) {
	s.mu.Lock()
	now := s.now()
	evicted := s.evictLocked(now)
	if len(s.forms) >= s.maxForms {
		s.mu.Unlock()
		closeAll(evicted)
		return uuid.Nil, nil, ErrFull
	}

	id := uuid.New()
	f := assessment.NewForm(test, s.engine)
	s.forms[id] = &entry{form: f, lastSeen: now}
	s.mu.Unlock()

	closeAll(evicted)
	return id, f, nil
}

// Get returns the form and marks it as used. An idle form is evicted
// instead of being returned.
func (s *Store) Get(id uuid.UUID) (*assessment.Form, bool) {
	s.mu.Lock()
	e, ok := s.forms[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if s.idle(e, now) {
		delete(s.forms, id)
		s.mu.Unlock()
		e.form.Close()
		return nil, false
	}
	e.lastSeen = now
	s.mu.Unlock()
	return e.form, true
}

// Delete closes and forgets the form. It reports whether the form existed.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	e, ok := s.forms[id]
	delete(s.forms, id)
	s.mu.Unlock()

	if ok {
		e.form.Close()
	}
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// Sweep closes every idle form and returns how many it removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	evicted := s.evictLocked(s.now())
	s.mu.Unlock()

	closeAll(evicted)
	if len(evicted) > 0 {
		s.logger.Debug().Int("evicted", len(evicted)).Msg("idle forms closed")
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done or CloseAll is called.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CloseAll closes every open form and stops Run, used on shutdown.
func (s *Store) CloseAll() {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	forms := s.forms
	s.forms = make(map[uuid.UUID]*entry)
	s.mu.Unlock()

	for _, e := range forms {
		e.form.Close()
	}
}

func (s *Store) idle(e *entry, now time.Time) bool {
	return now.Sub(e.lastSeen) >= s.idleTTL
}

func (s *Store) evictLocked(now time.Time) []*assessment.Form {
	var evicted []*assessment.Form
	for id, e := range s.forms {
		if s.idle(e, now) {
			delete(s.forms, id)
			evicted = append(evicted, e.form)
		}
	}
	return evicted
}

func closeAll(forms []*assessment.Form) {
	for _, f := range forms {
		f.Close()
	}
}
