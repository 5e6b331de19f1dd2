// Package statememory is the in-process redirect-state backend, used when no
// valkey host is configured. Single-node only: records do not survive a
// process restart, which matches the browser-session scope of the state.
package statememory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pointline/liff-portal/internal/redirectstate"
	"github.com/pointline/liff-portal/internal/serviceerr"
)

type Store struct {
	cache *gocache.Cache
	ttl   time.Duration
}

var _ = redirectstate.Store(&Store{})

func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *Store) Put(_ context.Context, stateID string, record redirectstate.Record) error {
	s.cache.Set(stateID, record, s.ttl)
	return nil
}

func (s *Store) Get(_ context.Context, stateID string) (redirectstate.Record, error) {
	v, ok := s.cache.Get(stateID)
	if !ok {
		return redirectstate.Record{}, serviceerr.ErrStateNotFound
	}

	record, ok := v.(redirectstate.Record)
	if !ok {
		return redirectstate.Record{}, serviceerr.ErrStateNotFound
	}

	return record, nil
}

func (s *Store) Delete(_ context.Context, stateID string) error {
	s.cache.Delete(stateID)
	return nil
}
