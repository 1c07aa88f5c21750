package postgres

import (
	"errors"
	"time"

	"github.com/frahmantamala/clinic-management/internal/auth"
	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(t *auth.RefreshToken) error {
	return r.db.Create(t).Error
}

func (r *RefreshTokenRepository) FindByHash(hash string) (*auth.RefreshToken, error) {
	var token auth.RefreshToken
	err := r.db.Where("token_hash = ?", hash).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// MarkRevoked flips revoked_at once. The revoked_at IS NULL guard makes the
// transition first-writer-wins under concurrency.
func (r *RefreshTokenRepository) MarkRevoked(id string, now time.Time) (bool, error) {
	res := r.db.Model(&auth.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRotated revokes the parent and records its replacement in the same
// guarded update.
func (r *RefreshTokenRepository) MarkRotated(id, replacedBy string, now time.Time) (bool, error) {
	res := r.db.Model(&auth.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]interface{}{
			"revoked_at":  now,
			"replaced_by": replacedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
