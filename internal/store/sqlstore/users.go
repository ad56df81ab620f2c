package sqlstore

import (
	"context"
	"fmt"

	"github.com/realaashishly/Social-Bot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// GetByTelegramID returns gorm.ErrRecordNotFound for unknown accounts.
func (r *Users) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Register inserts u unless a user with the same Telegram id exists.
// Profile fields of an existing user are left untouched. created reports
// whether a row was inserted.
func (r *Users) Register(ctx context.Context, u *models.User) (created bool, err error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoNothing: true,
		}).
		Create(u)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddUsage atomically increments the token counters of user id.
func (r *Users) AddUsage(ctx context.Context, id uint64, promptTokens, completionTokens int64) error {
	if promptTokens < 0 || completionTokens < 0 {
		return fmt.Errorf("negative token usage: prompt=%d completion=%d", promptTokens, completionTokens)
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"prompt_tokens":     gorm.Expr("prompt_tokens + ?", promptTokens),
			"completion_tokens": gorm.Expr("completion_tokens + ?", completionTokens),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
