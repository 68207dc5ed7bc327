package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/metrics"
	"github.com/khanghh/appsso/internal/store"
	"github.com/khanghh/appsso/model"
	"github.com/khanghh/appsso/params"
)

// cachedPair is the single slot kept per user. Writing it supersedes
// whatever pair the user had before.
type cachedPair struct {
	AccessToken  string `redis:"access_token"`
	RefreshToken string `redis:"refresh_token"`
	IssuedAt     int64  `redis:"issued_at"`
}

// Store records the current token pair of every user. Only one pair per user
// is live, concurrent writers for the same user resolve last-writer-wins.
type Store struct {
	cache    store.Store[cachedPair]
	repo     TokenRepository
	lifetime time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
}

// Save makes pair the current one for userID. The new audit row is appended
// and the cache slot overwritten before older rows are flagged superseded, so
// a failed write leaves the previous pair intact.
func (s *Store) Save(ctx context.Context, userID string, pair *TokenPair) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := model.Token{
		ID:           model.GenerateID(),
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    s.now().Add(s.lifetime),
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		return unavailable(err)
	}
	entry := cachedPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IssuedAt:     pair.IssuedAt.Unix(),
	}
	if err := s.cache.Set(ctx, userID, entry, s.lifetime); err != nil {
		return unavailable(err)
	}
	if _, err := s.repo.RevokeBefore(ctx, userID, row.ID, model.RevokeReasonSuperseded); err != nil {
		return unavailable(err)
	}
	return nil
}

// Revoke drops the cache slot and flags live audit rows with reason. Revoking
// a user without a live pair is not an error.
func (s *Store) Revoke(ctx context.Context, userID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.cache.Delete(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return unavailable(err)
	}
	revoked, err := s.repo.RevokeByUser(ctx, userID, reason)
	if err != nil {
		return unavailable(err)
	}
	if revoked > 0 {
		metrics.TokenRevoked(reason)
	}
	return nil
}

func (s *Store) lookup(ctx context.Context, userID string) (*cachedPair, error) {
	entry, err := s.cache.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &entry, nil
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsCurrent reports whether accessToken is the access token on record for
// userID. A missing slot means the user logged out or the slot expired.
func (s *Store) IsCurrent(ctx context.Context, userID string, accessToken string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.lookup(ctx, userID)
	if err != nil || entry == nil {
		return false, err
	}
	return tokensEqual(entry.AccessToken, accessToken), nil
}

// IsCurrentRefresh reports whether refreshToken belongs to the current pair.
// The cache slot only lives as long as the access token, so once it is gone
// the latest unrevoked audit row decides.
func (s *Store) IsCurrentRefresh(ctx context.Context, userID string, refreshToken string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if entry != nil {
		return tokensEqual(entry.RefreshToken, refreshToken), nil
	}
	row, err := s.repo.FindLive(ctx, userID)
	if err != nil {
		return false, unavailable(err)
	}
	if row == nil {
		return false, nil
	}
	return tokensEqual(row.RefreshToken, refreshToken), nil
}

type StoreOption func(*Store)

func WithStoreTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		s.timeout = timeout
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(storage store.Storage, repo TokenRepository, accessLifetime time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		cache:    store.New[cachedPair](storage, params.TokenKeyPrefix),
		repo:     repo,
		lifetime: accessLifetime,
		timeout:  params.StoreTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
