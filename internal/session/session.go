// Package session tracks who is logged in and decides what the shell may show.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/strrl/aurora-cli/internal/credentials"
	"github.com/strrl/aurora-cli/internal/logger"
	"github.com/strrl/aurora-cli/pkg/models"
)

// ErrNotLoggedIn is returned by operations that need an authenticated session
var ErrNotLoggedIn = errors.New("not logged in, run `aurora login`")

// State is the session phase
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Snapshot is the whole session value; it is replaced, never modified
type Snapshot struct {
	State State
	Me    *models.Me // set only when authenticated
}

// Plan returns the organization's plan, or "" when not authenticated
func (s Snapshot) Plan() models.Plan {
	if s.Me == nil {
		return ""
	}
	return s.Me.Organization.Plan
}

// Initial is the state before identity has been resolved
func Initial() Snapshot {
	return Snapshot{State: StateLoading}
}

// Resolved maps a "who am I" result to a snapshot. Any error means anonymous.
func Resolved(me models.Me, err error) Snapshot {
	if err != nil {
		return LoggedOut()
	}
	return Snapshot{State: StateAuthenticated, Me: &me}
}

// LoggedOut is the anonymous state
func LoggedOut() Snapshot {
	return Snapshot{State: StateAnonymous}
}

// Identity resolves the current user from the stored credentials
type Identity interface {
	Me(ctx context.Context) (models.Me, error)
}

// Manager owns the session snapshot and the stored credentials
type Manager struct {
	identity Identity
	store    credentials.Store

	mu      sync.RWMutex
	snap    Snapshot
	gen     uint64 // bumped on every transition; stale loads are dropped
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewManager creates a Manager in the loading state
func NewManager(identity Identity, store credentials.Store) *Manager {
	return &Manager{
		identity: identity,
		store:    store,
		snap:     Initial(),
		subs:     make(map[int]func(Snapshot)),
	}
}

// Current returns the current snapshot
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers fn for every transition and returns an unsubscribe func
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) set(snap Snapshot) {
	m.mu.Lock()
	subs := m.commitLocked(snap)
	m.mu.Unlock()
	m.publish(snap, subs)
}

// setIfCurrent applies snap only if no transition happened since gen. The
// check and the assignment share one critical section.
func (m *Manager) setIfCurrent(gen uint64, snap Snapshot) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	subs := m.commitLocked(snap)
	m.mu.Unlock()
	m.publish(snap, subs)
	return true
}

func (m *Manager) commitLocked(snap Snapshot) []func(Snapshot) {
	m.gen++
	m.snap = snap
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (m *Manager) publish(snap Snapshot, subs []func(Snapshot)) {
	logger.LogDebug("session transition", "state", snap.State)
	for _, fn := range subs {
		fn(snap)
	}
}

// Load resolves the identity behind the stored credentials
func (m *Manager) Load(ctx context.Context) Snapshot {
	m.mu.RLock()
	gen := m.gen
	m.mu.RUnlock()

	me, err := m.identity.Me(ctx)
	if err != nil {
		logger.LogDebug("identity lookup failed", "err", err)
	}
	snap := Resolved(me, err)

	if !m.setIfCurrent(gen, snap) {
		// logged out or expired while loading
		return m.Current()
	}
	return snap
}

// Login stores both tokens and then loads the identity they belong to
func (m *Manager) Login(ctx context.Context, pair models.TokenPair) (Snapshot, error) {
	err := m.store.Save(credentials.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	if err != nil {
		return m.Current(), fmt.Errorf("failed to store credentials: %w", err)
	}
	snap := m.Load(ctx)
	if snap.State != StateAuthenticated {
		return snap, ErrNotLoggedIn
	}
	return snap, nil
}

// Logout clears both tokens locally; the backend is not contacted
func (m *Manager) Logout() error {
	err := m.store.Clear()
	m.set(LoggedOut())
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Expire moves to anonymous after the client gave up refreshing
func (m *Manager) Expire() {
	m.set(LoggedOut())
}
