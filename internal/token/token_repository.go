package token

import (
	"context"
	"errors"

	"github.com/khanghh/appsso/model"
	"gorm.io/gorm"
)

// TokenRepository is the durable audit log of issued pairs. Rows are only
// inserted and flagged, never deleted.
type TokenRepository interface {
	Create(ctx context.Context, token *model.Token) error
	RevokeByUser(ctx context.Context, userID string, reason string) (int64, error)
	RevokeBefore(ctx context.Context, userID string, tokenID uint64, reason string) (int64, error)
	FindLive(ctx context.Context, userID string) (*model.Token, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func (r *tokenRepository) Create(ctx context.Context, token *model.Token) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) RevokeByUser(ctx context.Context, userID string, reason string) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.Token{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Updates(map[string]interface{}{
			"is_revoked":    true,
			"revoke_reason": reason,
		})
	return ret.RowsAffected, ret.Error
}

// RevokeBefore flags the live rows of the user older than tokenID. Token ids
// are snowflakes, so they order by issue time.
func (r *tokenRepository) RevokeBefore(ctx context.Context, userID string, tokenID uint64, reason string) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.Token{}).
		Where("user_id = ? AND is_revoked = ? AND token_id < ?", userID, false, tokenID).
		Updates(map[string]interface{}{
			"is_revoked":    true,
			"revoke_reason": reason,
		})
	return ret.RowsAffected, ret.Error
}

// FindLive returns the most recent unrevoked row of the user, or nil when
// there is none.
func (r *tokenRepository) FindLive(ctx context.Context, userID string) (*model.Token, error) {
	var token model.Token
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Order("token_id DESC").
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}
