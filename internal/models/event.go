package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is either a free-text note or a link with its generated summary.
// Events are never updated or deleted once created.
type Event struct {
	ID          string    `gorm:"primaryKey;type:varchar(26)" json:"id"` // ULID
	UserID      uint64    `gorm:"index:idx_events_user_created,priority:1;not null" json:"-"`
	Text        *string   `gorm:"type:text" json:"text,omitempty"`
	Link        *string   `gorm:"type:varchar(2048)" json:"link,omitempty"`
	LinkSummary *string   `gorm:"type:text" json:"link_summary,omitempty"`
	CreatedAt   time.Time `gorm:"index:idx_events_user_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// NewEventID returns a time-ordered ULID. IDs created in the same millisecond
// still sort in creation order.
func NewEventID() string {
	return ulid.Make().String()
}

// NewNote builds a text event owned by userID.
func NewNote(userID uint64, text string) *Event {
	return &Event{UserID: userID, Text: &text}
}

// NewLinkSummary builds a link event owned by userID.
func NewLinkSummary(userID uint64, link, summary string) *Event {
	return &Event{UserID: userID, Link: &link, LinkSummary: &summary}
}

// Content renders the event as prompt material.
func (e *Event) Content() string {
	if e.Text != nil && strings.TrimSpace(*e.Text) != "" {
		return *e.Text
	}
	var b strings.Builder
	if e.Link != nil {
		b.WriteString(*e.Link)
	}
	if e.LinkSummary != nil && *e.LinkSummary != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(*e.LinkSummary)
	}
	return b.String()
}
