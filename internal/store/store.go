package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nfaportal/internal/model"
)

// ErrNotFound is returned by ByID for ids absent from the held collection.
var ErrNotFound = errors.New("request not found")

// Fetcher reads the requests the backend lets a token see.
type Fetcher interface {
	ListRequests(ctx context.Context, token string) ([]model.Request, error)
}

// SortMode selects one of the orderings the views use. The modes are distinct
// on purpose; SortCreated is the canonical order.
type SortMode string

const (
	SortCreated   SortMode = "created"
	SortUpdated   SortMode = "updated"
	SortInitiator SortMode = "initiator"
)

// ParseSortMode maps a query value to a mode, defaulting to SortCreated.
func ParseSortMode(raw string) SortMode {
	switch SortMode(raw) {
	case SortUpdated, SortInitiator:
		return SortMode(raw)
	default:
		return SortCreated
	}
}

// Store holds one user's canonical collection of requests. Only the store
// mutates it; everyone else reads copies and asks for a refetch.
type Store struct {
	mu        sync.RWMutex
	fetcher   Fetcher
	token     string
	requests  []model.Request
	loaded    bool
	stale     bool
	inFlight  int
	lastErr   error
	fetchedAt time.Time
	log       zerolog.Logger
}

// New creates an empty store reading through fetcher with token.
func New(fetcher Fetcher, token string, log zerolog.Logger) *Store {
	return &Store{fetcher: fetcher, token: token, log: log}
}

// SetToken swaps the bearer token used by later fetches.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// FetchAll reloads the collection. On failure the previous collection stays
// and the error is kept for Err. Concurrent fetches are not serialized: the
// last response to arrive wins.
func (s *Store) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.inFlight++
	token := s.token
	s.mu.Unlock()

	requests, err := s.fetcher.ListRequests(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if err != nil {
		s.lastErr = err
		s.log.Warn().Err(err).Int("held", len(s.requests)).Msg("request fetch failed; keeping previous collection")
		return fmt.Errorf("fetch requests: %w", err)
	}

	sortRequests(requests, SortCreated)
	s.requests = requests
	s.loaded = true
	s.stale = false
	s.lastErr = nil
	s.fetchedAt = time.Now()
	s.log.Debug().Int("count", len(requests)).Msg("requests fetched")
	return nil
}

// ByID returns a copy of the request with id.
func (s *Store) ByID(id int) (model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return model.Request{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// All returns a copy of the collection in the given order.
func (s *Store) All(mode SortMode) []model.Request {
	s.mu.RLock()
	out := make([]model.Request, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Clone()
	}
	s.mu.RUnlock()

	if mode != SortCreated {
		sortRequests(out, mode)
	}
	return out
}

// Apply provisionally replaces (or inserts) one record after a confirmed
// mutation, until the next FetchAll overwrites it.
func (s *Store) Apply(req model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].ID == req.ID {
			s.requests[i] = req.Clone()
			return
		}
	}
	s.requests = append(s.requests, req.Clone())
	sortRequests(s.requests, SortCreated)
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Loaded reports whether at least one fetch has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Invalidate marks the collection as out of date, for instance after another
// user changed a request this user can see.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// NeedsFetch reports whether the next read should refetch first.
func (s *Store) NeedsFetch() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loaded || s.stale
}

// Err returns the error of the most recent failed fetch, cleared by a success.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// FetchedAt is the time of the last successful fetch.
func (s *Store) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

func sortRequests(requests []model.Request, mode SortMode) {
	slices.SortStableFunc(requests, func(a, b model.Request) int {
		var c int
		switch mode {
		case SortUpdated:
			c = b.LastTouched().Compare(a.LastTouched().Time)
		case SortInitiator:
			c = cmp.Compare(a.InitiatorName, b.InitiatorName)
		default:
			c = b.CreatedAt.Compare(a.CreatedAt.Time)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
