package storage

import (
	"github.com/jrsteele09/go-session-client/token"
	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

var _ token.Store = (*KeyringStore)(nil)

// tokenKey is not a credential, it is the key name under which the bearer
// string is stored in the system keyring.
const tokenKey = "session-token" // #nosec G101

// KeyringStore persists the bearer string in the operating system keyring
// under a fixed service name. Keyring failures are logged and degrade to
// "no token".
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Get() (string, bool) {
	value, err := keyring.Get(s.service, tokenKey)
	if err != nil {
		if err != keyring.ErrNotFound {
			log.Warn().Err(err).Str("service", s.service).Msg("keyring unreadable, treating as no token")
		}
		return "", false
	}
	if value == "" {
		return "", false
	}
	return value, true
}

func (s *KeyringStore) Set(tok string) {
	if tok == "" {
		s.Clear()
		return
	}
	if err := keyring.Set(s.service, tokenKey, tok); err != nil {
		log.Warn().Err(err).Str("service", s.service).Msg("keyring not writable, token not persisted")
	}
}

func (s *KeyringStore) Clear() {
	if err := keyring.Delete(s.service, tokenKey); err != nil && err != keyring.ErrNotFound {
		log.Warn().Err(err).Str("service", s.service).Msg("keyring entry not removable")
	}
}
