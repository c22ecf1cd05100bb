package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/apiclient"
	"github.com/jrsteele09/go-session-client/identity"
	"github.com/jrsteele09/go-session-client/identity/identityfakes"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/token/refresh"
	"github.com/jrsteele09/go-session-client/token/storefakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct {
	lock  sync.Mutex
	token string
}

func (f *fakeTokenSource) BearerToken() (string, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.token, f.token != ""
}

func (f *fakeTokenSource) set(token string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.token = token
}

type fakeRefresher struct {
	lock         sync.Mutex
	refreshToken string
	refreshErr   error
	refreshCalls int
	signOutCalls int
	signOutCause error
}

func (f *fakeRefresher) ForceRefresh(context.Context) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeRefresher) ForceSignOut(_ context.Context, cause error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.signOutCalls++
	f.signOutCause = cause
}

type testFixture struct {
	tokens    *fakeTokenSource
	refresher *fakeRefresher
	server    *httptest.Server
	client    *apiclient.Client
}

func setupTestFixture(t *testing.T, handler http.HandlerFunc) *testFixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := &fakeTokenSource{}
	refresher := &fakeRefresher{}

	return &testFixture{
		tokens:    tokens,
		refresher: refresher,
		server:    server,
		client:    apiclient.New(server.URL, tokens, refresher),
	}
}

func TestGetAttachesBearerAndDefaults(t *testing.T) {
	var gotAuth, gotContentType, gotRequestID string
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"hello":"world"}`))
	})
	f.tokens.set("bearer-1")

	result := f.client.Get(context.Background(), "/things", nil)
	require.True(t, result.IsOk)
	require.JSONEq(t, `{"hello":"world"}`, string(result.Data))
	require.Equal(t, "Bearer bearer-1", gotAuth)
	require.Equal(t, "application/json", gotContentType)
	require.NotEmpty(t, gotRequestID)
}

func TestCallerHeadersMergeOverDefaults(t *testing.T) {
	var gotContentType, gotCustom string
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusNoContent)
	})

	opts := &apiclient.RequestOptions{Headers: map[string]string{
		"Content-Type": "application/xml",
		"X-Custom":     "yes",
	}}
	result := f.client.Get(context.Background(), "/things", opts)
	require.True(t, result.IsOk)
	require.Equal(t, "application/xml", gotContentType)
	require.Equal(t, "yes", gotCustom)
}

func TestNoTokenOmitsAuthorizationHeader(t *testing.T) {
	var sawAuthHeader bool
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, sawAuthHeader = r.Header["Authorization"]
		w.WriteHeader(http.StatusOK)
	})

	result := f.client.Get(context.Background(), "/things", nil)
	require.True(t, result.IsOk)
	require.False(t, sawAuthHeader)
}

func TestClearedTokenManagerOmitsAuthorizationHeader(t *testing.T) {
	var sawAuthHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuthHeader = r.Header["Authorization"]
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	tokens := token.New(storefakes.NewFakeStore())
	tokens.SetTokenInfo(identity.AcquireResult{AccessToken: "bearer-1", ExpiresAt: time.Now().Add(time.Hour)})
	tokens.Clear()

	client := apiclient.New(server.URL, tokens, &fakeRefresher{})
	result := client.Get(context.Background(), "/things", nil)
	require.True(t, result.IsOk)
	require.False(t, sawAuthHeader)
}

func TestUnauthorizedRefreshesAndRetriesExactlyOnce(t *testing.T) {
	var requests []string
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		requests = append(requests, auth)
		if auth != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	f.tokens.set("stale")
	f.refresher.refreshToken = "fresh"

	result := f.client.Get(context.Background(), "/things", nil)
	require.True(t, result.IsOk)
	require.Equal(t, 1, f.refresher.refreshCalls)
	require.Equal(t, []string{"Bearer stale", "Bearer fresh"}, requests)
}

func TestUnauthorizedRetrySyncsSessionSnapshot(t *testing.T) {
	store := storefakes.NewFakeStore()
	idClient := identityfakes.NewFakeIdentityClient()
	tokens := token.New(store)
	sessions := session.NewContainer()
	coordinator := refresh.NewCoordinator(tokens, sessions, idClient)

	staleResult := identity.AcquireResult{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Second),
		Claims:      identity.Claims{Subject: "acct-1"},
	}
	info := tokens.SetTokenInfo(staleResult)
	sessions.Dispatch(session.SetUser{User: session.NewUser(staleResult.Claims, info)})
	idClient.SilentResult = &identity.AcquireResult{
		AccessToken: "fresh",
		ExpiresAt:   time.Now().Add(time.Hour),
		Claims:      identity.Claims{Subject: "acct-1"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	client := apiclient.New(server.URL, tokens, coordinator)
	result := client.Get(context.Background(), "/me", nil)
	require.True(t, result.IsOk)

	// Manager and session state must agree on the token after the retry.
	bearer, held := tokens.BearerToken()
	require.True(t, held)
	require.Equal(t, "fresh", bearer)
	user := sessions.CurrentUser()
	require.NotNil(t, user)
	require.Equal(t, "fresh", user.Token)
}

func TestSecondUnauthorizedDoesNotLoop(t *testing.T) {
	var hits int
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.tokens.set("stale")
	f.refresher.refreshToken = "still-rejected"

	result := f.client.Get(context.Background(), "/things", nil)
	require.False(t, result.IsOk)
	require.Contains(t, result.Message, "http error 401")
	require.Equal(t, 2, hits)
	require.Equal(t, 1, f.refresher.refreshCalls)
	require.Zero(t, f.refresher.signOutCalls)
}

func TestRefreshFailureForcesSignOut(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.tokens.set("stale")
	f.refresher.refreshErr = errors.New("provider said no")

	result := f.client.Get(context.Background(), "/things", nil)
	require.False(t, result.IsOk)
	require.Contains(t, result.Message, "session expired")
	require.Equal(t, 1, f.refresher.signOutCalls)
	require.ErrorIs(t, f.refresher.signOutCause, apiclient.ErrSessionExpired)
}

func TestSkipTokenRefreshPassesUnauthorizedThrough(t *testing.T) {
	var sawAuthHeader bool
	var hits int
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, sawAuthHeader = r.Header["Authorization"]
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.tokens.set("bearer-1")

	result := f.client.Get(context.Background(), "/login", &apiclient.RequestOptions{SkipTokenRefresh: true})
	require.False(t, result.IsOk)
	require.Contains(t, result.Message, "http error 401")
	require.False(t, sawAuthHeader)
	require.Equal(t, 1, hits)
	require.Zero(t, f.refresher.refreshCalls)
}

func TestHTTPErrorCarriesStatusAndBody(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("deliverable has no client"))
	})

	result := f.client.Get(context.Background(), "/deliverables", nil)
	require.False(t, result.IsOk)
	require.Contains(t, result.Message, "422")
	require.Contains(t, result.Message, "deliverable has no client")
}

func TestTransportFailureClassifiedDistinctly(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.server.Close() // server unreachable from here on

	result := f.client.Get(context.Background(), "/things", nil)
	require.False(t, result.IsOk)
	require.Contains(t, result.Message, "network error")
	require.NotContains(t, result.Message, "http error")
}

func TestPostMarshalsBody(t *testing.T) {
	var received map[string]string
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	})

	result := f.client.Post(context.Background(), "/roles", map[string]string{"name": "admin"}, nil)
	require.True(t, result.IsOk)
	require.Equal(t, "admin", received["name"])
}

func TestRetryReplaysRequestBody(t *testing.T) {
	var bodies []string
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		bodies = append(bodies, payload["name"])
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	f.tokens.set("stale")
	f.refresher.refreshToken = "fresh"

	result := f.client.Put(context.Background(), "/roles/1", map[string]string{"name": "admin"}, nil)
	require.True(t, result.IsOk)
	require.Equal(t, []string{"admin", "admin"}, bodies)
}

func TestDeleteReturnsEnvelope(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	result := f.client.Delete(context.Background(), "/roles/1", nil)
	require.True(t, result.IsOk)
}
