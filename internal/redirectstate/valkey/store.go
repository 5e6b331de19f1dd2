// Package statevalkey is the valkey-backed redirect-state store used when
// the portal runs with more than one replica.
package statevalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pointline/liff-portal/internal/redirectstate"
	"github.com/pointline/liff-portal/internal/serviceerr"
)

const objectType = "redirectState"

var (
	ErrGetState    = errors.New("getting redirect state from store")
	ErrStoreState  = errors.New("setting redirect state into storage")
	ErrDeleteState = errors.New("deleting redirect state from storage")
)

type Store struct {
	valkey valkey.Client
	prefix string
	ttl    time.Duration
}

var _ = redirectstate.Store(&Store{})

func NewStore(valkeyClient valkey.Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		valkey: valkeyClient,
		prefix: strings.TrimSuffix(prefix, ":"),
		ttl:    ttl,
	}
}

func (s *Store) Put(ctx context.Context, stateID string, record redirectstate.Record) error {
	bytes, err := json.Marshal(record)
	if err != nil {
		return errors.Join(ErrStoreState, fmt.Errorf("marshaling json: %w", err))
	}

	cmd := s.valkey.B().Set().
		Key(s.key(stateID)).
		Value(valkey.BinaryString(bytes)).
		Ex(s.ttl).
		Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return errors.Join(ErrStoreState, fmt.Errorf("executing set command: %w", err))
	}

	return nil
}

func (s *Store) Get(ctx context.Context, stateID string) (redirectstate.Record, error) {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(stateID)).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return redirectstate.Record{}, serviceerr.ErrStateNotFound
		}

		return redirectstate.Record{}, errors.Join(ErrGetState, fmt.Errorf("executing get command: %w", err))
	}

	var record redirectstate.Record
	if err := json.Unmarshal(bytes, &record); err != nil {
		return redirectstate.Record{}, errors.Join(ErrGetState, fmt.Errorf("unmarshaling json: %w", err))
	}

	return record, nil
}

func (s *Store) Delete(ctx context.Context, stateID string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(stateID)).Build()).Error(); err != nil {
		return errors.Join(ErrDeleteState, fmt.Errorf("executing del command: %w", err))
	}

	return nil
}

func (s *Store) key(stateID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, stateID)
}
