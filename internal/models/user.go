package models

import "time"

// User is a Telegram account that registered with /start.
// Token counters only grow; they are bumped after a successful digest completion.
type User struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	TelegramID       int64     `gorm:"uniqueIndex;not null" json:"telegram_id"`
	FirstName        string    `gorm:"type:varchar(128)" json:"first_name"`
	LastName         string    `gorm:"type:varchar(128)" json:"last_name"`
	Username         string    `gorm:"type:varchar(64);index" json:"username"`
	IsBot            bool      `gorm:"not null;default:false" json:"is_bot"`
	PromptTokens     int64     `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int64     `gorm:"not null;default:0" json:"completion_tokens"`
	EventCount       int64     `gorm:"not null;default:0" json:"event_count"`
	Events           []Event   `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
