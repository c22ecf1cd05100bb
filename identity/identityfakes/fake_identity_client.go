package identityfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-session-client/identity"
)

var _ identity.Client = (*FakeIdentityClient)(nil)

// FakeIdentityClient scripts acquisition outcomes for tests and records how
// many times each path was taken.
type FakeIdentityClient struct {
	lock sync.Mutex

	SilentResult      *identity.AcquireResult
	SilentErr         error
	InteractiveResult *identity.AcquireResult
	InteractiveErr    error
	SignInResult      *identity.AcquireResult
	SignInErr         error
	SignOutErr        error

	// SilentStub, when set, overrides the scripted silent result. It runs
	// outside the fake's lock so tests can block inside it.
	SilentStub func(ctx context.Context, scopes []string, accountID string) (*identity.AcquireResult, error)

	SilentCalls      int
	InteractiveCalls int
	SignInCalls      int
	SignOutCalls     int

	LastScopes    []string
	LastAccountID string
}

func NewFakeIdentityClient() *FakeIdentityClient {
	return &FakeIdentityClient{}
}

func (f *FakeIdentityClient) AcquireSilently(ctx context.Context, scopes []string, accountID string) (*identity.AcquireResult, error) {
	f.lock.Lock()
	f.SilentCalls++
	f.LastScopes = scopes
	f.LastAccountID = accountID
	stub := f.SilentStub
	f.lock.Unlock()

	if stub != nil {
		return stub(ctx, scopes, accountID)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.SilentErr != nil {
		return nil, f.SilentErr
	}
	return f.SilentResult, nil
}

func (f *FakeIdentityClient) AcquireInteractively(_ context.Context, scopes []string) (*identity.AcquireResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.InteractiveCalls++
	f.LastScopes = scopes
	if f.InteractiveErr != nil {
		return nil, f.InteractiveErr
	}
	return f.InteractiveResult, nil
}

func (f *FakeIdentityClient) SignIn(_ context.Context) (*identity.AcquireResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.SignInCalls++
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	return f.SignInResult, nil
}

func (f *FakeIdentityClient) SignOut(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.SignOutCalls++
	return f.SignOutErr
}

// Calls returns the total number of acquisition calls issued to the provider.
func (f *FakeIdentityClient) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.SilentCalls + f.InteractiveCalls + f.SignInCalls
}

// SilentCallCount reads the silent counter under the lock, for tests with a
// concurrent caller.
func (f *FakeIdentityClient) SilentCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.SilentCalls
}

// SignOutCallCount reads the sign-out counter under the lock.
func (f *FakeIdentityClient) SignOutCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.SignOutCalls
}
