package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/realaashishly/Social-Bot/internal/pipeline"
	"go.uber.org/zap"
)

// Handler is what the router dispatches to; *pipeline.Pipeline implements it.
type Handler interface {
	Start(ctx context.Context, s pipeline.Sender)
	Generate(ctx context.Context, s pipeline.Sender)
	SummarizeLink(ctx context.Context, s pipeline.Sender, link string)
	AddNote(ctx context.Context, s pipeline.Sender, text string)
}

type Router struct {
	h   Handler
	log *zap.Logger
}

func NewRouter(h Handler, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{h: h, log: log}
}

func senderOf(msg *tgbotapi.Message) pipeline.Sender {
	s := pipeline.Sender{ChatID: msg.Chat.ID}
	if msg.From != nil {
		s.TelegramID = msg.From.ID
		s.FirstName = msg.From.FirstName
		s.LastName = msg.From.LastName
		s.Username = msg.From.UserName
		s.IsBot = msg.From.IsBot
	}
	return s
}

// linkOf returns the link carried by msg, if any. A plain url entity yields
// the whole message text; a text_link yields its target.
func linkOf(msg *tgbotapi.Message) (string, bool) {
	for _, e := range msg.Entities {
		switch {
		case e.IsURL():
			return strings.TrimSpace(msg.Text), true
		case e.Type == "text_link" && e.URL != "":
			return e.URL, true
		}
	}
	return "", false
}

// Route handles one inbound message to completion.
func (r *Router) Route(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}
	s := senderOf(msg)

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			r.h.Start(ctx, s)
		case "generate":
			r.h.Generate(ctx, s)
		default:
			r.log.Debug("unknown command", zap.String("command", msg.Command()), zap.Int64("telegram_id", s.TelegramID))
		}
	case msg.Sticker != nil:
		r.log.Debug("sticker received", zap.Int64("telegram_id", s.TelegramID), zap.String("file_id", msg.Sticker.FileID))
	case msg.Text != "":
		if link, ok := linkOf(msg); ok {
			r.h.SummarizeLink(ctx, s, link)
			return
		}
		r.h.AddNote(ctx, s, msg.Text)
	}
}

// Dispatcher polls updates and routes them on a bounded worker pool. Each
// sender is pinned to one worker, so one user's updates are handled in the
// order Telegram delivered them while different users run in parallel.
type Dispatcher struct {
	bot         TelegramBot
	router      *Router
	concurrency int
	log         *zap.Logger
}

func NewDispatcher(bot TelegramBot, router *Router, concurrency int, log *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{bot: bot, router: router, concurrency: concurrency, log: log}
}

// shardOf picks the worker for msg. Messages without a sender fall back to the chat.
func shardOf(msg *tgbotapi.Message, n int) int {
	var key int64
	switch {
	case msg.From != nil:
		key = msg.From.ID
	case msg.Chat != nil:
		key = msg.Chat.ID
	}
	return int(uint64(key) % uint64(n))
}

// Run blocks until ctx is done, then waits for in-flight handlers.
func (d *Dispatcher) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := d.bot.GetUpdatesChan(u)

	d.log.Info("telegram polling started",
		zap.String("bot", d.bot.GetSelf().UserName),
		zap.Int("concurrency", d.concurrency),
	)

	shards := make([]chan *tgbotapi.Message, d.concurrency)
	var wg sync.WaitGroup
	wg.Add(d.concurrency)
	for i := range shards {
		shards[i] = make(chan *tgbotapi.Message, 8)
		go func(workerID int, jobs <-chan *tgbotapi.Message) {
			defer wg.Done()
			for msg := range jobs {
				start := time.Now()
				d.route(ctx, workerID, msg)
				if cost := time.Since(start); cost > 10*time.Second {
					d.log.Info("slow update", zap.Int("worker", workerID), zap.Duration("cost", cost))
				}
			}
		}(i, shards[i])
	}

	stop := func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			d.log.Info("telegram polling stopping")
			d.bot.StopReceivingUpdates()
			stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				stop()
				return nil
			}
			if update.Message == nil {
				continue
			}
			select {
			case shards[shardOf(update.Message, d.concurrency)] <- update.Message:
			case <-ctx.Done():
			}
		}
	}
}

func (d *Dispatcher) route(ctx context.Context, workerID int, msg *tgbotapi.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic", zap.Int("worker", workerID), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	d.router.Route(ctx, msg)
}
