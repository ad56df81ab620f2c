package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrMessageNotFound is returned by a Messenger when the message to delete
// is already gone.
var ErrMessageNotFound = errors.New("message not found")

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (messageID int, err error)
	SendSticker(ctx context.Context, chatID int64, fileID string) (messageID int, err error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Indicator is one transient "working" message: either text or a sticker.
type Indicator struct {
	Text      string
	StickerID string
}

func TextIndicator(text string) Indicator  { return Indicator{Text: text} }
func StickerIndicator(id string) Indicator { return Indicator{StickerID: id} }

// Feedback shows and removes transient progress indicators.
type Feedback struct {
	msg Messenger
	log *zap.Logger
}

func NewFeedback(msg Messenger, log *zap.Logger) *Feedback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feedback{msg: msg, log: log}
}

// FeedbackScope owns the indicator messages sent by one Acquire.
type FeedbackScope struct {
	f      *Feedback
	chatID int64
	ids    []int
	once   sync.Once
}

// Acquire sends the indicators in order. A failed send is logged and skipped;
// the returned scope only tracks messages that were actually delivered.
func (f *Feedback) Acquire(ctx context.Context, chatID int64, indicators ...Indicator) *FeedbackScope {
	s := &FeedbackScope{f: f, chatID: chatID}
	for _, ind := range indicators {
		var (
			id  int
			err error
		)
		if ind.StickerID != "" {
			id, err = f.msg.SendSticker(ctx, chatID, ind.StickerID)
		} else {
			id, err = f.msg.SendText(ctx, chatID, ind.Text)
		}
		if err != nil {
			f.log.Warn("feedback indicator not sent", zap.Int64("chat_id", chatID), zap.Error(err))
			continue
		}
		s.ids = append(s.ids, id)
	}
	return s
}

// Release deletes the scope's indicators. Only the first call does anything,
// and messages that are already gone are ignored. Deletion runs even when
// ctx has been cancelled.
func (s *FeedbackScope) Release(ctx context.Context) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		for _, id := range s.ids {
			err := s.f.msg.DeleteMessage(ctx, s.chatID, id)
			if err != nil && !errors.Is(err, ErrMessageNotFound) {
				s.f.log.Warn("feedback indicator not deleted",
					zap.Int64("chat_id", s.chatID), zap.Int("message_id", id), zap.Error(err))
			}
		}
	})
}

// MessageIDs returns the ids of the delivered indicators.
func (s *FeedbackScope) MessageIDs() []int {
	return append([]int(nil), s.ids...)
}
