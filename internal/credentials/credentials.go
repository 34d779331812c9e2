// Package credentials persists the access/refresh token pair.
//
// Both tokens are always written and cleared together; a store never
// exposes one without the other.
package credentials

import (
	"errors"
	"sync"
)

// Fixed storage keys
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// ErrIncompletePair is returned when saving a pair with only one token set
var ErrIncompletePair = errors.New("credentials: access and refresh tokens must be saved together")

// Pair is the stored token pair
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether neither token is present
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Complete reports whether both tokens are present
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Store persists a Pair
type Store interface {
	Load() (Pair, error)
	Save(p Pair) error
	Clear() error
}

// MemoryStore keeps the pair in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

// NewMemoryStore creates a store, optionally seeded with a pair
func NewMemoryStore(seed Pair) *MemoryStore {
	return &MemoryStore{pair: seed}
}

func (s *MemoryStore) Load() (Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, nil
}

func (s *MemoryStore) Save(p Pair) error {
	if !p.Complete() {
		return ErrIncompletePair
	}
	s.mu.Lock()
	s.pair = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.pair = Pair{}
	s.mu.Unlock()
	return nil
}
