package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nfaportal/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	requests []model.Request
	err      error
	tokens   []string
	block    chan struct{}
}

func (f *fakeFetcher) ListRequests(_ context.Context, token string) ([]model.Request, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Request, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Clone()
	}
	return out, nil
}

func at(day int) model.Timestamp {
	return model.Timestamp{Time: time.Date(2024, 1, day, 9, 0, 0, 0, time.UTC)}
}

func sample() []model.Request {
	return []model.Request{
		{ID: 1, InitiatorName: "Zed", CreatedAt: at(1), UpdatedAt: at(9)},
		{ID: 2, InitiatorName: "Amy", CreatedAt: at(3)},
		{ID: 3, InitiatorName: "Max", CreatedAt: at(2), UpdatedAt: at(4)},
	}
}

func ids(requests []model.Request) []int {
	out := make([]int, len(requests))
	for i, r := range requests {
		out[i] = r.ID
	}
	return out
}

func TestFetchAllSortsByCreated(t *testing.T) {
	s := New(&fakeFetcher{requests: sample()}, "Bearer a", zerolog.Nop())
	assert.True(t, s.NeedsFetch())

	require.NoError(t, s.FetchAll(context.Background()))
	assert.True(t, s.Loaded())
	assert.False(t, s.NeedsFetch())
	assert.Equal(t, []int{2, 3, 1}, ids(s.All(SortCreated)))
}

func TestSortModes(t *testing.T) {
	s := New(&fakeFetcher{requests: sample()}, "Bearer a", zerolog.Nop())
	require.NoError(t, s.FetchAll(context.Background()))

	assert.Equal(t, []int{1, 3, 2}, ids(s.All(SortUpdated)))
	assert.Equal(t, []int{2, 3, 1}, ids(s.All(SortInitiator)))
	assert.Equal(t, []int{2, 3, 1}, ids(s.All(SortCreated)), "sorted views must not reorder the collection")
}

func TestParseSortMode(t *testing.T) {
	assert.Equal(t, SortUpdated, ParseSortMode("updated"))
	assert.Equal(t, SortInitiator, ParseSortMode("initiator"))
	assert.Equal(t, SortCreated, ParseSortMode(""))
	assert.Equal(t, SortCreated, ParseSortMode("bogus"))
}

func TestFetchFailureKeepsPreviousCollection(t *testing.T) {
	fetcher := &fakeFetcher{requests: sample()}
	s := New(fetcher, "Bearer a", zerolog.Nop())
	require.NoError(t, s.FetchAll(context.Background()))

	fetcher.err = errors.New("backend down")
	err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, s.Err(), fetcher.err)
	assert.Len(t, s.All(SortCreated), 3)

	fetcher.err = nil
	require.NoError(t, s.FetchAll(context.Background()))
	assert.NoError(t, s.Err())
}

func TestByID(t *testing.T) {
	s := New(&fakeFetcher{requests: sample()}, "Bearer a", zerolog.Nop())
	require.NoError(t, s.FetchAll(context.Background()))

	r, err := s.ByID(3)
	require.NoError(t, err)
	assert.Equal(t, "Max", r.InitiatorName)

	_, err = s.ByID(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	fetcher := &fakeFetcher{requests: []model.Request{{ID: 1, Approvers: []int{7, 9}}}}
	s := New(fetcher, "Bearer a", zerolog.Nop())
	require.NoError(t, s.FetchAll(context.Background()))

	r, err := s.ByID(1)
	require.NoError(t, err)
	r.Approvers[0] = 99
	r.Status = model.StatusApproved

	again, err := s.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 9}, again.Approvers)
	assert.Empty(t, again.Status)
}

func TestApplyReplacesUntilNextFetch(t *testing.T) {
	fetcher := &fakeFetcher{requests: sample()}
	s := New(fetcher, "Bearer a", zerolog.Nop())
	require.NoError(t, s.FetchAll(context.Background()))

	s.Apply(model.Request{ID: 3, Status: model.StatusApproved, CreatedAt: at(2)})
	r, err := s.ByID(3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, r.Status)

	s.Apply(model.Request{ID: 4, CreatedAt: at(5)})
	assert.Equal(t, []int{4, 2, 3, 1}, ids(s.All(SortCreated)))

	require.NoError(t, s.FetchAll(context.Background()))
	r, err = s.ByID(3)
	require.NoError(t, err)
	assert.Empty(t, r.Status)
	_, err = s.ByID(4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadingWhileFetchInFlight(t *testing.T) {
	fetcher := &fakeFetcher{requests: sample(), block: make(chan struct{})}
	s := New(fetcher, "Bearer a", zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.FetchAll(context.Background()) }()

	assert.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
	close(fetcher.block)
	require.NoError(t, <-done)
	assert.False(t, s.Loading())
}

func TestInvalidate(t *testing.T) {
	s := New(&fakeFetcher{requests: sample()}, "Bearer a", zerolog.Nop())
	require.NoError(t, s.FetchAll(context.Background()))

	s.Invalidate()
	assert.True(t, s.NeedsFetch())
	assert.Len(t, s.All(SortCreated), 3)

	require.NoError(t, s.FetchAll(context.Background()))
	assert.False(t, s.NeedsFetch())
}

func TestRegistry(t *testing.T) {
	fetcher := &fakeFetcher{requests: sample()}
	r := NewRegistry(fetcher, zerolog.Nop())

	a := r.For(1, "Bearer a")
	require.NoError(t, a.FetchAll(context.Background()))

	assert.Same(t, a, r.For(1, "Bearer b"))
	require.NoError(t, a.FetchAll(context.Background()))
	assert.Equal(t, []string{"Bearer a", "Bearer b"}, fetcher.tokens)

	b := r.For(2, "Bearer c")
	require.NoError(t, b.FetchAll(context.Background()))
	r.Invalidate(2, 3)
	assert.False(t, a.NeedsFetch())
	assert.True(t, b.NeedsFetch())

	r.Drop(1)
	assert.NotSame(t, a, r.For(1, "Bearer a"))
}
