// Package refresh coordinates token refreshes: a periodic check detects the
// need for a refresh and publishes a trigger, a single handler performs it,
// and a single-flight guard collapses overlapping triggers into one
// identity-provider call.
package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/go-session-client/identity"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultCheckInterval is how often the periodic check looks at token expiry.
const DefaultCheckInterval = time.Minute

// ErrSessionExpired is dispatched into the session state when a refresh
// failure forces sign-out.
var ErrSessionExpired = errors.New("session expired, please sign in again")

// Coordinator owns the refresh path. Detection (ticker, observed 401s) and
// execution (handler) are decoupled through the Bus so any event source can
// trigger the same path.
type Coordinator struct {
	tokens   *token.Manager
	sessions *session.Container
	client   identity.Client
	bus      *Bus
	interval time.Duration
	flight   singleflight.Group
}

type CoordinatorOption func(*Coordinator)

// WithCheckInterval overrides the periodic check interval.
func WithCheckInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.interval = interval
	}
}

func NewCoordinator(tokens *token.Manager, sessions *session.Container, client identity.Client, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		tokens:   tokens,
		sessions: sessions,
		client:   client,
		bus:      NewBus(),
		interval: DefaultCheckInterval,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Bus exposes the trigger channel so other event sources (for example an
// observed 401) can request a refresh without touching the coordinator.
func (c *Coordinator) Bus() *Bus {
	return c.bus
}

// TriggerRefresh publishes a refresh-needed signal.
func (c *Coordinator) TriggerRefresh() {
	c.bus.Publish()
}

// Run drives the periodic check and the trigger handler until ctx is
// cancelled. Subscribed once by the owning scope; at most one handler
// performs the actual refresh per trigger cycle.
func (c *Coordinator) Run(ctx context.Context) {
	triggers, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.tokens.ShouldRefresh() && c.sessions.CurrentUser() != nil {
				c.bus.Publish()
			}
		case <-triggers:
			c.handleTrigger(ctx)
		}
	}
}

// handleTrigger performs one refresh cycle and applies the failure taxonomy.
func (c *Coordinator) handleTrigger(ctx context.Context) {
	if _, err := c.ForceRefresh(ctx); err != nil {
		c.handleFailure(ctx, err)
	}
}

// ForceRefresh performs a refresh through the single-flight guard: near
// simultaneous callers share one in-flight identity-provider call and its
// result. This is the shared entry point for the 401 path. On success the
// fresh token snapshot is folded into the session state so consumers
// re-reading after the refresh see the new token immediately.
func (c *Coordinator) ForceRefresh(ctx context.Context) (string, error) {
	result, err, shared := c.flight.Do("token-refresh", func() (interface{}, error) {
		accountID := ""
		if user := c.sessions.CurrentUser(); user != nil {
			accountID = user.AccountID
		}

		newToken, err := c.tokens.Refresh(ctx, c.client, accountID)
		if err != nil {
			return nil, err
		}

		if info, ok := c.tokens.TokenInfo(); ok {
			if user := c.sessions.CurrentUser(); user != nil {
				c.sessions.Dispatch(session.SetUser{User: user.WithToken(info)})
			}
		}
		return newToken, nil
	})
	if shared {
		log.Debug().Msg("refresh result shared with concurrent waiter")
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// ForceSignOut clears the token, ends the provider session and resets the
// session state, surfacing cause to consumers. Used on unrecoverable refresh
// failure and explicit sign-out (cause nil).
func (c *Coordinator) ForceSignOut(ctx context.Context, cause error) {
	c.tokens.Clear()
	if err := c.client.SignOut(ctx); err != nil {
		log.Warn().Err(err).Msg("identity provider sign-out failed")
	}

	c.sessions.Dispatch(session.Reset{})
	if cause != nil {
		c.sessions.Dispatch(session.SetError{Err: cause})
	}
}

// handleFailure applies the error taxonomy: network failures are reported
// and the session preserved, unrecoverable failures force sign-out, anything
// else marks the session errored.
func (c *Coordinator) handleFailure(ctx context.Context, err error) {
	var refreshErr *token.RefreshError
	if !errors.As(err, &refreshErr) {
		log.Error().Err(err).Msg("token refresh failed")
		c.sessions.Dispatch(session.SetError{Err: err})
		return
	}

	switch refreshErr.Kind {
	case token.KindNetwork:
		log.Warn().Err(refreshErr).Msg("token refresh hit a network error, keeping session")
	case token.KindLoginRequired:
		log.Error().Err(refreshErr).Msg("session unrecoverable, signing out")
		c.ForceSignOut(ctx, ErrSessionExpired)
	default:
		log.Error().Err(refreshErr).Msg("token refresh failed")
		c.sessions.Dispatch(session.SetError{Err: refreshErr})
	}
}
