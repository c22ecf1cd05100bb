// Package storage provides token.Store implementations backed by the local
// filesystem and by the operating system keyring.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-session-client/token"
	"github.com/rs/zerolog/log"
)

var _ token.Store = (*FileStore)(nil)

// fileContents is the persisted shape: a single string under a fixed key.
type fileContents struct {
	AccessToken string `json:"access_token"`
}

// FileStore persists the bearer string in a JSON file. Storage failures are
// logged and degrade to "no token"; they never reach callers.
type FileStore struct {
	path string
	lock sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get() (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("token file unreadable, treating as no token")
		}
		return "", false
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("token file corrupt, treating as no token")
		return "", false
	}
	if contents.AccessToken == "" {
		return "", false
	}
	return contents.AccessToken, true
}

func (s *FileStore) Set(tok string) {
	if tok == "" {
		s.Clear()
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := json.Marshal(fileContents{AccessToken: tok})
	if err != nil {
		log.Warn().Err(err).Msg("token encode failed, token not persisted")
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("token directory not writable, token not persisted")
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("token file not writable, token not persisted")
	}
}

func (s *FileStore) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", s.path).Msg("token file not removable")
	}
}
