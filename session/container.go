// Package session holds the single authoritative session state record,
// mutated only through a fixed set of reducer transitions.
package session

import (
	"sync"
	"time"
)

// State is the process-wide session state. Exactly one authoritative
// instance exists, owned by a Container.
type State struct {
	User    *User
	Loading bool
	Err     error
}

// Action is a state transition request. The reachable state combinations are
// uninitialized (loading), authenticated (user set), unauthenticated (user
// nil, not loading) and errored (err set).
type Action interface {
	isAction()
}

// SetUser sets the user and clears the loading flag. A nil user transitions
// to unauthenticated.
type SetUser struct {
	User *User
}

// SetLoading sets only the loading flag.
type SetLoading struct {
	Loading bool
}

// SetError sets the error and clears the loading flag. A nil error clears it.
type SetError struct {
	Err error
}

// Reset returns the container to a quiescent unauthenticated state with
// loading false.
type Reset struct{}

func (SetUser) isAction()    {}
func (SetLoading) isAction() {}
func (SetError) isAction()   {}
func (Reset) isAction()      {}

// reduce is pure: given state and action it produces the next state. Side
// effects (storage writes, notifications) happen around Dispatch, never here.
func reduce(s State, a Action) State {
	switch action := a.(type) {
	case SetUser:
		s.User = action.User
		s.Loading = false
	case SetLoading:
		s.Loading = action.Loading
	case SetError:
		s.Err = action.Err
		s.Loading = false
	case Reset:
		s = State{}
	}
	return s
}

// Container wraps the reducer with a lock and change notification. It lives
// for the application's process lifetime; Reset returns it to a quiescent
// state, not destruction.
type Container struct {
	lock      sync.RWMutex
	state     State
	observers []func(State)
	nowFunc   func() time.Time
}

type ContainerOption func(*Container)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ContainerOption {
	return func(c *Container) {
		c.nowFunc = now
	}
}

// NewContainer starts in the "checking for an existing session" state:
// no user, loading, no error.
func NewContainer(options ...ContainerOption) *Container {
	c := &Container{
		state:   State{Loading: true},
		nowFunc: time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Dispatch applies a transition and notifies observers with the resulting
// snapshot. Transitions are idempotent given the same data, so stale
// dispatches from discarded in-flight work are safe.
func (c *Container) Dispatch(a Action) {
	c.lock.Lock()
	c.state = reduce(c.state, a)
	next := c.snapshotLocked()
	observers := make([]func(State), len(c.observers))
	copy(observers, c.observers)
	c.lock.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}

// OnChange registers an observer invoked after every transition with a state
// snapshot. Register at wiring time; observers run outside the lock.
func (c *Container) OnChange(fn func(State)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns a copy of the current state.
func (c *Container) Snapshot() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.snapshotLocked()
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Container) CurrentUser() *User {
	return c.Snapshot().User
}

// Token returns the user's bearer token snapshot while it is unexpired.
func (c *Container) Token() (string, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	u := c.state.User
	if u == nil || u.Token == "" || !c.nowFunc().Before(u.TokenExpiresAt) {
		return "", false
	}
	return u.Token, true
}

func (c *Container) snapshotLocked() State {
	s := c.state
	if s.User != nil {
		copied := *s.User
		s.User = &copied
	}
	return s
}
