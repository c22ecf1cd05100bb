package session_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/identity"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func validUser() *session.User {
	return &session.User{
		Email:          "jane@example.com",
		DisplayName:    "Jane Doe",
		Roles:          []string{"admin"},
		Token:          "bearer-1",
		TokenExpiresAt: testNow.Add(time.Hour),
		AccountID:      "acct-1",
	}
}

func TestInitialStateIsCheckingForSession(t *testing.T) {
	c := session.NewContainer()

	state := c.Snapshot()
	require.Nil(t, state.User)
	require.True(t, state.Loading)
	require.NoError(t, state.Err)
}

func TestSetUserClearsLoading(t *testing.T) {
	c := session.NewContainer()

	c.Dispatch(session.SetUser{User: validUser()})

	state := c.Snapshot()
	require.NotNil(t, state.User)
	require.Equal(t, "jane@example.com", state.User.Email)
	require.False(t, state.Loading)
}

func TestSetUserAbsentThenValidRestoresState(t *testing.T) {
	c := session.NewContainer()
	c.Dispatch(session.SetError{Err: errors.New("boom")})
	c.Dispatch(session.SetUser{User: nil})

	c.Dispatch(session.SetError{Err: nil})
	c.Dispatch(session.SetUser{User: validUser()})

	state := c.Snapshot()
	require.NotNil(t, state.User)
	require.False(t, state.Loading)
	require.NoError(t, state.Err)
}

func TestSetErrorClearsLoading(t *testing.T) {
	c := session.NewContainer()
	c.Dispatch(session.SetLoading{Loading: true})

	c.Dispatch(session.SetError{Err: errors.New("refresh failed")})

	state := c.Snapshot()
	require.Error(t, state.Err)
	require.False(t, state.Loading)
}

func TestSetLoadingTouchesOnlyLoading(t *testing.T) {
	c := session.NewContainer()
	c.Dispatch(session.SetUser{User: validUser()})

	c.Dispatch(session.SetLoading{Loading: true})

	state := c.Snapshot()
	require.NotNil(t, state.User)
	require.True(t, state.Loading)
}

func TestResetReturnsToQuiescentState(t *testing.T) {
	c := session.NewContainer()
	c.Dispatch(session.SetUser{User: validUser()})
	c.Dispatch(session.SetError{Err: errors.New("boom")})

	c.Dispatch(session.Reset{})

	state := c.Snapshot()
	require.Nil(t, state.User)
	require.False(t, state.Loading)
	require.NoError(t, state.Err)
}

func TestTokenOmittedWhenExpiredOrAbsent(t *testing.T) {
	c := session.NewContainer(session.WithNowFunc(func() time.Time { return testNow }))

	_, ok := c.Token()
	require.False(t, ok)

	stale := validUser()
	stale.TokenExpiresAt = testNow.Add(-time.Second)
	c.Dispatch(session.SetUser{User: stale})
	_, ok = c.Token()
	require.False(t, ok)

	c.Dispatch(session.SetUser{User: validUser()})
	tok, ok := c.Token()
	require.True(t, ok)
	require.Equal(t, "bearer-1", tok)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := session.NewContainer()
	c.Dispatch(session.SetUser{User: validUser()})

	snap := c.Snapshot()
	snap.User.Email = "mutated@example.com"

	require.Equal(t, "jane@example.com", c.Snapshot().User.Email)
}

func TestObserversSeeEveryTransition(t *testing.T) {
	c := session.NewContainer()

	var seen []session.State
	c.OnChange(func(s session.State) { seen = append(seen, s) })

	c.Dispatch(session.SetLoading{Loading: true})
	c.Dispatch(session.SetUser{User: validUser()})

	require.Len(t, seen, 2)
	require.True(t, seen[0].Loading)
	require.NotNil(t, seen[1].User)
}

func TestNewUserFromClaimsAndTokenInfo(t *testing.T) {
	claims := identity.Claims{
		Subject: "acct-9",
		Email:   "sam@example.com",
		Name:    "Sam Smith",
		Roles:   []string{"viewer"},
	}
	info := token.TokenInfo{AccessToken: "bearer-9", ExpiresAt: testNow.Add(time.Hour)}

	u := session.NewUser(claims, info)
	require.Equal(t, "acct-9", u.AccountID)
	require.Equal(t, "bearer-9", u.Token)
	require.True(t, u.HasRole("viewer"))
	require.False(t, u.HasRole("admin"))
}

func TestWithTokenReturnsFreshSnapshot(t *testing.T) {
	u := validUser()
	refreshed := u.WithToken(token.TokenInfo{AccessToken: "bearer-2", ExpiresAt: testNow.Add(2 * time.Hour)})

	require.Equal(t, "bearer-2", refreshed.Token)
	require.Equal(t, "bearer-1", u.Token)
	require.Equal(t, u.Email, refreshed.Email)
}
