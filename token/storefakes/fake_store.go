package storefakes

import (
	"sync"

	"github.com/jrsteele09/go-session-client/token"
)

var _ token.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store that records calls for tests.
type FakeStore struct {
	lock  sync.Mutex
	value string
	held  bool

	SetCalls   int
	ClearCalls int

	// FailGets simulates a broken storage layer: Get degrades to "no token".
	FailGets bool
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (s *FakeStore) Get() (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.FailGets || !s.held {
		return "", false
	}
	return s.value, true
}

func (s *FakeStore) Set(tok string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.SetCalls++
	if tok == "" {
		s.value = ""
		s.held = false
		return
	}
	s.value = tok
	s.held = true
}

func (s *FakeStore) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ClearCalls++
	s.value = ""
	s.held = false
}
