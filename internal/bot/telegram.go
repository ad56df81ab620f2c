package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/realaashishly/Social-Bot/internal/pipeline"
)

// TelegramBot is the subset of *tgbotapi.BotAPI we use, so tests can mock it.
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() { w.bot.StopReceivingUpdates() }

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) { return w.bot.Send(c) }

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User { return w.bot.Self }

// NewTelegramBot authorizes token against the Bot API.
func NewTelegramBot(token string, client *http.Client) (TelegramBot, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	b, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &tgBotWrapper{bot: b}, nil
}

// Telegram has a 4096 char limit per message.
const maxMessageLen = 4000

// Messenger implements pipeline.Messenger on top of the Bot API.
type Messenger struct {
	bot TelegramBot
}

func NewMessenger(bot TelegramBot) *Messenger {
	return &Messenger{bot: bot}
}

// SendText sends text, split at line breaks when it is too long for one
// message. The id of the first part is returned.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	first := 0
	for i, chunk := range splitMessage(text, maxMessageLen) {
		sent, err := m.bot.Send(tgbotapi.NewMessage(chatID, chunk))
		if err != nil {
			return first, fmt.Errorf("send telegram message: %w", err)
		}
		if i == 0 {
			first = sent.MessageID
		}
	}
	return first, nil
}

func (m *Messenger) SendSticker(ctx context.Context, chatID int64, fileID string) (int, error) {
	sent, err := m.bot.Send(tgbotapi.NewSticker(chatID, tgbotapi.FileID(fileID)))
	if err != nil {
		return 0, fmt.Errorf("send telegram sticker: %w", err)
	}
	return sent.MessageID, nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := m.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "message to delete not found") {
		return pipeline.ErrMessageNotFound
	}
	return fmt.Errorf("delete telegram message %d: %w", messageID, err)
}

func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > limit {
			// Try to split at last newline before limit
			idx := strings.LastIndex(chunk[:limit], "\n")
			if idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = cutRunes(chunk, limit)
			}
		}
		out = append(out, chunk)
		text = strings.TrimPrefix(text[len(chunk):], "\n")
	}
	return out
}

// cutRunes cuts s to at most limit bytes without splitting a UTF-8 sequence.
func cutRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if i > limit {
			break
		}
		n = i
	}
	if n == 0 {
		return s[:limit]
	}
	return s[:n]
}
