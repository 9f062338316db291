package remote

import "sync"

// TokenStore holds the operator's bearer token. The client clears it when the server rejects it.
type TokenStore struct {
	mu      sync.RWMutex
	token   string
	onClear []func()
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// OnClear registers fn to be called after every Clear.
func (s *TokenStore) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = ""
	fns := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
