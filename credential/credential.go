// Package credential holds the bearer token pair and the per-process session state
// that every authenticated request reads.
package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	AccessTokenAccount  = "accessToken"
	RefreshTokenAccount = "refreshToken"
)

// Credential is the token pair issued at login and renewed by reissue.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists a Credential across process restarts.
type Store interface {
	Load() (Credential, error)
	Save(Credential) error
	Clear() error
}

// KeyringStore keeps tokens in the OS keychain (Keychain, Secret Service, Credential Manager).
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (k *KeyringStore) Load() (Credential, error) {
	access, err := k.get(AccessTokenAccount)
	if err != nil {
		return Credential{}, err
	}
	refresh, err := k.get(RefreshTokenAccount)
	if err != nil {
		return Credential{}, err
	}
	return Credential{AccessToken: access, RefreshToken: refresh}, nil
}

func (k *KeyringStore) get(account string) (string, error) {
	v, err := keyring.Get(k.service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", account, err)
	}
	return v, nil
}

// Save writes both tokens. An empty refresh token leaves the stored one untouched.
func (k *KeyringStore) Save(c Credential) error {
	if err := keyring.Set(k.service, AccessTokenAccount, c.AccessToken); err != nil {
		return fmt.Errorf("store %s: %w", AccessTokenAccount, err)
	}
	if c.RefreshToken == "" {
		return nil
	}
	if err := keyring.Set(k.service, RefreshTokenAccount, c.RefreshToken); err != nil {
		return fmt.Errorf("store %s: %w", RefreshTokenAccount, err)
	}
	return nil
}

func (k *KeyringStore) Clear() error {
	for _, account := range []string{AccessTokenAccount, RefreshTokenAccount} {
		if err := keyring.Delete(k.service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", account, err)
		}
	}
	return nil
}

// MemoryStore is a process-local Store, used in tests and with credentials.backend=memory.
type MemoryStore struct {
	mu   sync.Mutex
	cred Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, nil
}

func (m *MemoryStore) Save(c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refresh := c.RefreshToken
	if refresh == "" {
		refresh = m.cred.RefreshToken
	}
	m.cred = Credential{AccessToken: c.AccessToken, RefreshToken: refresh}
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{}
	return nil
}
