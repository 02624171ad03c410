package credential

import (
	"sync"
)

// Session is the explicit session context shared by the transport and the assistant.
// It is created at app start, filled at login and torn down at logout.
type Session struct {
	store Store

	mu            sync.RWMutex
	cred          Credential
	loaded        bool
	chatSessionID string
}

func NewSession(store Store) *Session {
	return &Session{store: store}
}

// Credential returns the current token pair, reading through to the store once.
func (s *Session) Credential() (Credential, error) {
	s.mu.RLock()
	if s.loaded {
		c := s.cred
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		c, err := s.store.Load()
		if err != nil {
			return Credential{}, err
		}
		s.cred = c
		s.loaded = true
	}
	return s.cred, nil
}

// AccessToken returns "" when nobody is logged in or the store is unreadable.
func (s *Session) AccessToken() string {
	c, err := s.Credential()
	if err != nil {
		return ""
	}
	return c.AccessToken
}

// Login persists a freshly issued credential.
func (s *Session) Login(c Credential) error {
	return s.update(c)
}

// Renew persists a reissued credential. An empty refresh token keeps the current one.
func (s *Session) Renew(c Credential) error {
	return s.update(c)
}

func (s *Session) update(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(c); err != nil {
		return err
	}
	if c.RefreshToken == "" {
		if s.loaded {
			c.RefreshToken = s.cred.RefreshToken
		} else if stored, err := s.store.Load(); err == nil {
			c.RefreshToken = stored.RefreshToken
		}
	}
	s.cred = c
	s.loaded = true
	return nil
}

// Logout clears stored tokens and forgets the assistant conversation.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatSessionID = ""
	s.cred = Credential{}
	s.loaded = true
	return s.store.Clear()
}

func (s *Session) ChatSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatSessionID
}

// SetChatSessionID keeps the newest assistant session id; empty ids are ignored.
func (s *Session) SetChatSessionID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.chatSessionID = id
	s.mu.Unlock()
}
