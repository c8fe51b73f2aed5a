// Package state is the client's state container. It owns the in-memory
// detection records, monitor sessions, settings and identity, routes
// mutations through the remote gateway when syncing, and saves the result
// locally after every committed change.
package state

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/gateway"
	"roast-tracker/internal/history"
	"roast-tracker/internal/model"
	"roast-tracker/internal/persist"
)

// Options configures a Store.
type Options struct {
	// Gateway is the remote backend. Nil keeps the store local-only.
	Gateway gateway.Gateway
	// Persister saves and restores local state. Nil keeps state in memory.
	Persister persist.Persister
	// AnonymousWrites sends writes of signed-out users to the gateway
	// without an owner. Otherwise signed-out users are served locally.
	AnonymousWrites bool
	Now             func() time.Time
	NewID           func() string
	Logger          *log.Logger
}

// Store is the client state container. It is safe for concurrent use.
type Store struct {
	gw              gateway.Gateway
	persister       persist.Persister
	anonymousWrites bool
	now             func() time.Time
	newID           func() string
	logger          *log.Logger

	mu       sync.Mutex
	records  []model.DetectionRecord
	sessions []model.MonitorSession
	settings model.Settings
	identity model.Identity

	saveMu sync.Mutex

	listenMu          sync.Mutex
	nextListener      int
	observers         map[int]func(Event)
	identityListeners map[int]func(model.Identity)
	unsubscribe       func()
}

// Open restores the saved state and returns a ready Store. It does not
// contact the gateway; call Initialize for that.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Persister == nil {
		opts.Persister = &persist.Memory{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "state ", log.LstdFlags)
	}

	snap := opts.Persister.Restore(ctx)
	return &Store{
		gw:                opts.Gateway,
		persister:         opts.Persister,
		anonymousWrites:   opts.AnonymousWrites,
		now:               opts.Now,
		newID:             opts.NewID,
		logger:            opts.Logger,
		records:           snap.DetectionRecords,
		sessions:          snap.MonitorSessions,
		settings:          snap.Settings,
		identity:          snap.Identity.Normalize(),
		observers:         make(map[int]func(Event)),
		identityListeners: make(map[int]func(model.Identity)),
	}, nil
}

// Close detaches from the gateway and writes a final snapshot.
func (s *Store) Close() error {
	s.listenMu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.listenMu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.persister.Save(ctx, s.snapshot())
}

// Observe registers fn for every mutation phase transition.
func (s *Store) Observe(fn func(Event)) (cancel func()) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.observers[id] = fn
	return func() {
		s.listenMu.Lock()
		defer s.listenMu.Unlock()
		delete(s.observers, id)
	}
}

// OnIdentityChange registers fn to run whenever the identity changes.
func (s *Store) OnIdentityChange(fn func(model.Identity)) (cancel func()) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.identityListeners[id] = fn
	return func() {
		s.listenMu.Lock()
		defer s.listenMu.Unlock()
		delete(s.identityListeners, id)
	}
}

func (s *Store) emit(op string, phase Phase, err error) {
	s.listenMu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.listenMu.Unlock()

	ev := Event{Op: op, Phase: phase, Err: err}
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) notifyIdentity(identity model.Identity) {
	s.listenMu.Lock()
	fns := make([]func(model.Identity), 0, len(s.identityListeners))
	for _, fn := range s.identityListeners {
		fns = append(fns, fn)
	}
	s.listenMu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// remote reports whether writes go to the gateway for the current identity
// and, if so, which owner they carry.
func (s *Store) remote() (owner *string, ok bool) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	switch {
	case s.gw == nil:
		return nil, false
	case identity.Authenticated:
		return identity.OwnerID(), true
	case s.anonymousWrites:
		return nil, true
	default:
		return nil, false
	}
}

func (s *Store) snapshot() persist.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return persist.Snapshot{
		DetectionRecords: slices.Clone(s.records),
		MonitorSessions:  cloneSessions(s.sessions),
		Settings:         s.settings,
		Identity:         s.identity,
	}
}

// save writes the current state. Failures are logged and swallowed.
func (s *Store) save(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.persister.Save(context.WithoutCancel(ctx), s.snapshot()); err != nil {
		s.logger.Printf("WARN: %v", err)
	}
}

// commit saves and reports a committed mutation.
func commit[T any](ctx context.Context, s *Store, op string, v T) Result[T] {
	s.save(ctx)
	s.emit(op, Committed, nil)
	return committed(v)
}

func fail[T any](s *Store, op string, err error) Result[T] {
	s.emit(op, Failed, err)
	return failed[T](err)
}

// DetectionRecords returns a copy of the records, newest first.
func (s *Store) DetectionRecords() []model.DetectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// MonitorSessions returns a copy of the sessions, newest first.
func (s *Store) MonitorSessions() []model.MonitorSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSessions(s.sessions)
}

// MonitorSession returns the session with id.
func (s *Store) MonitorSession(id string) (model.MonitorSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.sessionIndex(id); i >= 0 {
		ms := s.sessions[i]
		ms.Snapshots = slices.Clone(ms.Snapshots)
		return ms, true
	}
	return model.MonitorSession{}, false
}

// Settings returns the current settings.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Identity returns the current identity.
func (s *Store) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Stats summarizes the detection history.
func (s *Store) Stats() history.Stats {
	return history.Compute(s.DetectionRecords())
}

// Query filters and sorts the detection history.
func (s *Store) Query(f history.Filter) []model.DetectionRecord {
	return history.Apply(s.DetectionRecords(), f)
}

func (s *Store) sessionIndex(id string) int {
	return slices.IndexFunc(s.sessions, func(ms model.MonitorSession) bool { return ms.ID == id })
}

func cloneSessions(in []model.MonitorSession) []model.MonitorSession {
	out := slices.Clone(in)
	for i := range out {
		out[i].Snapshots = slices.Clone(out[i].Snapshots)
	}
	return out
}

func newestFirst[T any](items []T, at func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int { return at(b).Compare(at(a)) })
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, errs.ErrNotFound)
}
