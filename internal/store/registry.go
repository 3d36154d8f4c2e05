package store

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry hands out one Store per signed-in user.
type Registry struct {
	mu      sync.Mutex
	fetcher Fetcher
	stores  map[int]*Store
	log     zerolog.Logger
}

func NewRegistry(fetcher Fetcher, log zerolog.Logger) *Registry {
	return &Registry{
		fetcher: fetcher,
		stores:  make(map[int]*Store),
		log:     log.With().Str("component", "store").Logger(),
	}
}

// For returns userID's store, creating it on first use. The token is
// refreshed so a re-login keeps the already loaded collection.
func (r *Registry) For(userID int, token string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[userID]; ok {
		s.SetToken(token)
		return s
	}
	s := New(r.fetcher, token, r.log.With().Int("user_id", userID).Logger())
	r.stores[userID] = s
	return s
}

// Drop forgets userID's store (logout, expired session).
func (r *Registry) Drop(userID int) {
	r.mu.Lock()
	delete(r.stores, userID)
	r.mu.Unlock()
}

// Invalidate marks the stores of userIDs stale. Users without a store are
// skipped; their first read fetches anyway.
func (r *Registry) Invalidate(userIDs ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		if s, ok := r.stores[id]; ok {
			s.Invalidate()
		}
	}
}
