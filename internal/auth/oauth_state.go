package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/store"
	"github.com/khanghh/appsso/params"
)

type oauthState struct {
	Provider  string `redis:"provider"`
	CreatedAt int64  `redis:"created_at"`
}

// stateStore hands out single-use nonces for the authorization code flow.
type stateStore struct {
	states store.Store[oauthState]
}

func (s *stateStore) Create(ctx context.Context, provider string) (string, error) {
	nonce, err := common.GenerateSecret(params.OAuthStateLength)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, params.StoreTimeout)
	defer cancel()
	st := oauthState{Provider: provider, CreatedAt: time.Now().Unix()}
	if err := s.states.Set(ctx, nonce, st, params.OAuthStateExpiration); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return nonce, nil
}

// Consume validates the nonce for provider and removes it. A nonce that was
// already used, expired or belongs to another provider is rejected.
func (s *stateStore) Consume(ctx context.Context, provider string, nonce string) error {
	if nonce == "" {
		return ErrInvalidState
	}
	ctx, cancel := context.WithTimeout(ctx, params.StoreTimeout)
	defer cancel()
	st, err := s.states.Get(ctx, nonce)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	// deleting is what makes the nonce single use
	if err := s.states.Delete(ctx, nonce); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidState
		}
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	if st.Provider != provider || time.Since(time.Unix(st.CreatedAt, 0)) > params.OAuthStateExpiration {
		return ErrInvalidState
	}
	return nil
}

func newStateStore(storage store.Storage) *stateStore {
	return &stateStore{
		states: store.New[oauthState](storage, params.OAuthStateKeyPrefix),
	}
}
