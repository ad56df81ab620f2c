// Package pipeline turns chat requests into generated replies: registration,
// the digest of a user's events, link summaries and note ingestion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/realaashishly/Social-Bot/internal/ai"
	"github.com/realaashishly/Social-Bot/internal/models"
	"github.com/realaashishly/Social-Bot/internal/transcript"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Register(ctx context.Context, u *models.User) (created bool, err error)
	AddUsage(ctx context.Context, id uint64, promptTokens, completionTokens int64) error
}

type EventStore interface {
	ListByUser(ctx context.Context, userID uint64) ([]models.Event, error)
	CreateForUser(ctx context.Context, e *models.Event) error
}

type TranscriptFetcher interface {
	Fetch(ctx context.Context, link string) ([]transcript.Segment, error)
}

// Sender identifies who asked and where to answer.
type Sender struct {
	TelegramID int64
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
	IsBot      bool
}

// Deps is everything a Pipeline talks to. It is built once at startup.
type Deps struct {
	Messenger Messenger
	Users     UserStore
	Events    EventStore
	Fetcher   TranscriptFetcher
	Completer ai.Provider
	Locker    Locker
	Logger    *zap.Logger

	// CompletionTimeout bounds a single completion call; zero means no bound.
	CompletionTimeout time.Duration
	// NotesEnabled turns plain text messages into note events. When false the
	// bot answers with a "not supported yet" notice.
	NotesEnabled bool
}

type Pipeline struct {
	msg      Messenger
	users    UserStore
	events   EventStore
	fetcher  TranscriptFetcher
	llm      ai.Provider
	locker   Locker
	feedback *Feedback
	log      *zap.Logger

	completionTimeout time.Duration
	notesEnabled      bool
}

func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Locker == nil {
		d.Locker = NewKeyedMutex()
	}
	return &Pipeline{
		msg:               d.Messenger,
		users:             d.Users,
		events:            d.Events,
		fetcher:           d.Fetcher,
		llm:               d.Completer,
		locker:            d.Locker,
		feedback:          NewFeedback(d.Messenger, d.Logger),
		log:               d.Logger,
		completionTimeout: d.CompletionTimeout,
		notesEnabled:      d.NotesEnabled,
	}
}

var errEmptyCompletion = errors.New("completion returned no content")

// run executes fn inside a feedback scope and then sends exactly one reply.
// The indicators are gone before the reply goes out, whichever way fn exits.
// A panic in fn is logged and answered with fallback.
func (p *Pipeline) run(ctx context.Context, flow string, s Sender, fallback string, indicators []Indicator, fn func(ctx context.Context, log *zap.Logger) string) {
	log := p.log.With(
		zap.String("flow", flow),
		zap.String("run_id", uuid.NewString()),
		zap.Int64("telegram_id", s.TelegramID),
	)
	start := time.Now()

	reply := func() (reply string) {
		scope := p.feedback.Acquire(ctx, s.ChatID, indicators...)
		defer scope.Release(ctx)
		defer func() {
			if r := recover(); r != nil {
				log.Error("pipeline panic", zap.Any("panic", r), zap.Stack("stack"))
				reply = fallback
			}
		}()

		unlock, err := p.locker.Lock(ctx, fmt.Sprintf("user:%d", s.TelegramID))
		if err != nil {
			log.Error("acquire user lock", zap.Error(err))
			return fallback
		}
		defer func() {
			if err := unlock(); err != nil {
				log.Warn("release user lock", zap.Error(err))
			}
		}()

		return fn(ctx, log)
	}()

	if _, err := p.msg.SendText(ctx, s.ChatID, reply); err != nil {
		log.Error("send reply", zap.Error(err))
	}
	log.Debug("pipeline done", zap.Duration("cost", time.Since(start)))
}

func (p *Pipeline) complete(ctx context.Context, messages []ai.Message) (ai.Completion, error) {
	if p.completionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.completionTimeout)
		defer cancel()
	}
	out, err := p.llm.Chat(ctx, messages)
	if err != nil {
		return ai.Completion{}, err
	}
	if strings.TrimSpace(out.Content) == "" {
		return ai.Completion{}, errEmptyCompletion
	}
	return out, nil
}

// Start registers the sender. Repeated calls are harmless.
func (p *Pipeline) Start(ctx context.Context, s Sender) {
	log := p.log.With(zap.String("flow", "start"), zap.Int64("telegram_id", s.TelegramID))

	reply := WelcomeText(s.FirstName)
	created, err := p.users.Register(ctx, &models.User{
		TelegramID: s.TelegramID,
		FirstName:  s.FirstName,
		LastName:   s.LastName,
		Username:   s.Username,
		IsBot:      s.IsBot,
	})
	if err != nil {
		log.Error("register user", zap.Error(err))
		reply = ReplyRegistrationFailed
	} else {
		log.Info("user registered", zap.Bool("created", created))
	}

	if _, err := p.msg.SendText(ctx, s.ChatID, reply); err != nil {
		log.Error("send reply", zap.Error(err))
	}
}

// LatestEvent picks the most recently created event, breaking timestamp ties
// by id (ULIDs sort by creation). events must not be empty.
func LatestEvent(events []models.Event) models.Event {
	latest := events[0]
	for _, e := range events[1:] {
		if e.CreatedAt.After(latest.CreatedAt) ||
			(e.CreatedAt.Equal(latest.CreatedAt) && e.ID > latest.ID) {
			latest = e
		}
	}
	return latest
}

// Generate writes social posts about the sender's latest event and bills the
// token usage to the sender.
func (p *Pipeline) Generate(ctx context.Context, s Sender) {
	indicators := []Indicator{TextIndicator(WaitingText(s.FirstName)), StickerIndicator(StickerDigestLoading)}

	p.run(ctx, "digest", s, ReplyDifficulties, indicators, func(ctx context.Context, log *zap.Logger) string {
		user, err := p.users.GetByTelegramID(ctx, s.TelegramID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("digest for unknown user")
			return ReplyUserNotFound
		}
		if err != nil {
			log.Error("load user", zap.Error(err))
			return ReplyDifficulties
		}

		events, err := p.events.ListByUser(ctx, user.ID)
		if err != nil {
			log.Error("list events", zap.Error(err))
			return ReplyDifficulties
		}
		if len(events) == 0 {
			return ReplyNoEvents
		}

		subject := LatestEvent(events)
		out, err := p.complete(ctx, DigestPrompt(subject.Content()))
		if err != nil {
			log.Error("digest completion", zap.String("event_id", subject.ID), zap.Error(err))
			return ReplyDifficulties
		}

		if err := p.users.AddUsage(ctx, user.ID, out.Usage.PromptTokens, out.Usage.CompletionTokens); err != nil {
			log.Error("record usage", zap.Error(err))
			return ReplyDifficulties
		}
		log.Info("digest generated",
			zap.Int("events", len(events)),
			zap.String("event_id", subject.ID),
			zap.Int64("prompt_tokens", out.Usage.PromptTokens),
			zap.Int64("completion_tokens", out.Usage.CompletionTokens),
		)
		return out.Content
	})
}

// SummarizeLink summarizes the video behind link and stores the summary as
// an event of the sender. Token usage of this flow is not billed.
func (p *Pipeline) SummarizeLink(ctx context.Context, s Sender, link string) {
	indicators := []Indicator{StickerIndicator(StickerSummaryLoading)}

	p.run(ctx, "summary", s, ReplySummaryFailed, indicators, func(ctx context.Context, log *zap.Logger) string {
		segments, err := p.fetcher.Fetch(ctx, link)
		switch {
		case errors.Is(err, transcript.ErrNoSubtitles):
			return ReplyNoSubtitles
		case errors.Is(err, transcript.ErrInvalidVideoID):
			return ReplyInvalidLink
		case err != nil:
			log.Error("fetch transcript", zap.String("link", link), zap.Error(err))
			return ReplySummaryFailed
		}

		out, err := p.complete(ctx, SummaryPrompt(transcript.Join(segments)))
		if err != nil {
			log.Error("summary completion", zap.Error(err))
			return ReplySummaryFailed
		}

		user, err := p.users.GetByTelegramID(ctx, s.TelegramID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("summary for unknown user")
			return ReplyRegisterBeforeLink
		}
		if err != nil {
			log.Error("load user", zap.Error(err))
			return ReplySummaryFailed
		}

		event := models.NewLinkSummary(user.ID, link, out.Content)
		if err := p.events.CreateForUser(ctx, event); err != nil {
			log.Error("save summary event", zap.Error(err))
			return ReplySummaryFailed
		}
		log.Info("link summarized", zap.String("event_id", event.ID), zap.Int("segments", len(segments)))
		return out.Content
	})
}

// AddNote stores text as a note event of the sender. With notes disabled it
// answers with a static notice and a sticker instead.
func (p *Pipeline) AddNote(ctx context.Context, s Sender, text string) {
	if !p.notesEnabled {
		if _, err := p.msg.SendText(ctx, s.ChatID, ReplyNotesNotSupported); err != nil {
			p.log.Error("send reply", zap.Int64("telegram_id", s.TelegramID), zap.Error(err))
		}
		if _, err := p.msg.SendSticker(ctx, s.ChatID, StickerNotesDisabled); err != nil {
			p.log.Error("send sticker", zap.Int64("telegram_id", s.TelegramID), zap.Error(err))
		}
		return
	}

	p.run(ctx, "note", s, ReplyDifficulties, nil, func(ctx context.Context, log *zap.Logger) string {
		user, err := p.users.GetByTelegramID(ctx, s.TelegramID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReplyRegisterBeforeNote
		}
		if err != nil {
			log.Error("load user", zap.Error(err))
			return ReplyDifficulties
		}

		event := models.NewNote(user.ID, text)
		if err := p.events.CreateForUser(ctx, event); err != nil {
			log.Error("save note event", zap.Error(err))
			return ReplyDifficulties
		}
		log.Info("note saved", zap.String("event_id", event.ID))
		return ReplyNoteSaved
	})
}
