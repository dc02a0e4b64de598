// Package memory is a process-local storage backend. It backs STORE_DRIVER=memory
// and the end-to-end tests; data does not survive a restart.
package memory

import (
	"sync"

	"github.com/go-auth-sessions/internal/domain"
)

// Store holds every table behind a single lock so that cascades and
// token rotation are atomic.
type Store struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	emails   map[string]string // email -> user id
	refresh  map[string]domain.RefreshToken
	oneTimes map[string]domain.OneTimeToken
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
		refresh:  make(map[string]domain.RefreshToken),
		oneTimes: make(map[string]domain.OneTimeToken),
	}
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s: s} }
func (s *Store) RefreshTokens() *RefreshTokenRepo { return &RefreshTokenRepo{s: s} }
func (s *Store) OneTimeTokens() *OneTimeTokenRepo { return &OneTimeTokenRepo{s: s} }
