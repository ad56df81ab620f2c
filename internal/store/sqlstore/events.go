package sqlstore

import (
	"context"

	"github.com/realaashishly/Social-Bot/internal/models"
	"gorm.io/gorm"
)

type Events struct {
	db *gorm.DB
}

func NewEvents(db *gorm.DB) *Events {
	return &Events{db: db}
}

// ListByUser returns all events of userID in creation order (oldest -> newest).
func (r *Events) ListByUser(ctx context.Context, userID uint64) ([]models.Event, error) {
	var events []models.Event
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CreateForUser inserts e and bumps the owner's event count in one
// transaction. An unknown owner rolls back with gorm.ErrRecordNotFound.
func (r *Events) CreateForUser(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = models.NewEventID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", e.UserID).
			Update("event_count", gorm.Expr("event_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(e).Error
	})
}
