package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/realaashishly/Social-Bot/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBot struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	reqErr   error
	nextID   int
	stopped  bool
}

func newMockBot() *mockBot {
	return &mockBot{updates: make(chan tgbotapi.Update, 10), nextID: 1}
}

func (m *mockBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return m.updates }

func (m *mockBot) StopReceivingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	m.nextID++
	return tgbotapi.Message{MessageID: m.nextID}, nil
}

func (m *mockBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	if m.reqErr != nil {
		return nil, m.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockBot) GetSelf() tgbotapi.User { return tgbotapi.User{UserName: "social_bot"} }

func TestMessenger_SendTextAndSticker(t *testing.T) {
	bot := newMockBot()
	m := NewMessenger(bot)

	id, err := m.SendText(context.Background(), 5, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	id, err = m.SendSticker(context.Background(), 5, "stk")
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	require.Len(t, bot.sent, 2)
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "hello", msg.Text)
	assert.EqualValues(t, 5, msg.ChatID)
	st := bot.sent[1].(tgbotapi.StickerConfig)
	assert.Equal(t, tgbotapi.FileID("stk"), st.File)
}

func TestMessenger_SendTextSplitsLongMessages(t *testing.T) {
	bot := newMockBot()
	m := NewMessenger(bot)

	text := strings.Repeat("a", 3000) + "\n" + strings.Repeat("b", 3000)
	id, err := m.SendText(context.Background(), 5, text)
	require.NoError(t, err)
	assert.Equal(t, 2, id, "id of the first part")
	require.Len(t, bot.sent, 2)
	assert.Equal(t, strings.Repeat("a", 3000), bot.sent[0].(tgbotapi.MessageConfig).Text)
	assert.Equal(t, strings.Repeat("b", 3000), bot.sent[1].(tgbotapi.MessageConfig).Text)
}

func TestSplitMessage_NoNewline(t *testing.T) {
	parts := splitMessage(strings.Repeat("é", 3000), 4000)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 4000)
		assert.True(t, strings.HasPrefix(p, "é"))
	}
	assert.Equal(t, strings.Repeat("é", 3000), parts[0]+parts[1])
}

func TestMessenger_DeleteMessage(t *testing.T) {
	bot := newMockBot()
	m := NewMessenger(bot)
	require.NoError(t, m.DeleteMessage(context.Background(), 5, 9))
	del := bot.requests[0].(tgbotapi.DeleteMessageConfig)
	assert.Equal(t, 9, del.MessageID)

	bot.reqErr = &tgbotapi.Error{Code: 400, Message: "Bad Request: message to delete not found"}
	assert.ErrorIs(t, m.DeleteMessage(context.Background(), 5, 9), pipeline.ErrMessageNotFound)

	bot.reqErr = errors.New("connection reset")
	err := m.DeleteMessage(context.Background(), 5, 9)
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrMessageNotFound)
}

type call struct {
	name string
	arg  string
	s    pipeline.Sender
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []call
	// gate, when set, runs before a call is recorded
	gate func(call)
}

func (h *recordingHandler) add(c call) {
	if h.gate != nil {
		h.gate(c)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

func (h *recordingHandler) Start(_ context.Context, s pipeline.Sender)    { h.add(call{name: "start", s: s}) }
func (h *recordingHandler) Generate(_ context.Context, s pipeline.Sender) { h.add(call{name: "generate", s: s}) }
func (h *recordingHandler) SummarizeLink(_ context.Context, s pipeline.Sender, link string) {
	h.add(call{name: "link", arg: link, s: s})
}
func (h *recordingHandler) AddNote(_ context.Context, s pipeline.Sender, text string) {
	h.add(call{name: "note", arg: text, s: s})
}

func (h *recordingHandler) snapshot() []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]call(nil), h.calls...)
}

func command(text string) *tgbotapi.Message {
	msg := textMessage(text)
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}}
	return msg
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: 77, FirstName: "Bob", LastName: "B", UserName: "bob"},
		Chat: &tgbotapi.Chat{ID: 88},
		Text: text,
	}
}

func messageFrom(userID int64, text string) *tgbotapi.Message {
	msg := textMessage(text)
	msg.From = &tgbotapi.User{ID: userID}
	msg.Chat = &tgbotapi.Chat{ID: userID}
	return msg
}

func TestRouter_Route(t *testing.T) {
	h := &recordingHandler{}
	r := NewRouter(h, nil)
	ctx := context.Background()

	r.Route(ctx, command("/start"))
	r.Route(ctx, command("/generate"))
	r.Route(ctx, command("/unknown"))

	link := textMessage("https://youtu.be/dQw4w9WgXcQ")
	link.Entities = []tgbotapi.MessageEntity{{Type: "url", Offset: 0, Length: 28}}
	r.Route(ctx, link)

	hidden := textMessage("watch this")
	hidden.Entities = []tgbotapi.MessageEntity{{Type: "text_link", Offset: 0, Length: 5, URL: "https://youtu.be/dQw4w9WgXcQ"}}
	r.Route(ctx, hidden)

	r.Route(ctx, textMessage("spoke at a conference"))

	sticker := textMessage("")
	sticker.Sticker = &tgbotapi.Sticker{FileID: "s"}
	r.Route(ctx, sticker)

	r.Route(ctx, &tgbotapi.Message{Text: "no sender"})

	calls := h.snapshot()
	require.Len(t, calls, 5)
	assert.Equal(t, "start", calls[0].name)
	assert.Equal(t, pipeline.Sender{TelegramID: 77, ChatID: 88, FirstName: "Bob", LastName: "B", Username: "bob"}, calls[0].s)
	assert.Equal(t, "generate", calls[1].name)
	assert.Equal(t, call{name: "link", arg: "https://youtu.be/dQw4w9WgXcQ", s: calls[0].s}, calls[2])
	assert.Equal(t, call{name: "link", arg: "https://youtu.be/dQw4w9WgXcQ", s: calls[0].s}, calls[3])
	assert.Equal(t, call{name: "note", arg: "spoke at a conference", s: calls[0].s}, calls[4])
}

func TestDispatcher_RunRoutesUntilCancelled(t *testing.T) {
	bot := newMockBot()
	h := &recordingHandler{}
	d := NewDispatcher(bot, NewRouter(h, nil), 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	bot.updates <- tgbotapi.Update{Message: command("/start")}
	bot.updates <- tgbotapi.Update{}
	bot.updates <- tgbotapi.Update{Message: textMessage("note")}

	require.Eventually(t, func() bool { return len(h.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	bot.mu.Lock()
	assert.True(t, bot.stopped)
	bot.mu.Unlock()
}

func TestDispatcher_KeepsPerUserOrder(t *testing.T) {
	bot := newMockBot()
	h := &recordingHandler{}
	// a slow first note gives later updates every chance to overtake it
	h.gate = func(c call) {
		if c.arg == "note 0" {
			time.Sleep(50 * time.Millisecond)
		}
	}
	d := NewDispatcher(bot, NewRouter(h, nil), 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	want := []string{"note 0", "note 1", "note 2"}
	for _, text := range want {
		bot.updates <- tgbotapi.Update{Message: messageFrom(11, text)}
	}
	bot.updates <- tgbotapi.Update{Message: func() *tgbotapi.Message {
		m := messageFrom(11, "/generate")
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 9}}
		return m
	}()}

	require.Eventually(t, func() bool { return len(h.snapshot()) == 4 }, 2*time.Second, 5*time.Millisecond)
	var got []string
	for _, c := range h.snapshot() {
		if c.name == "generate" {
			got = append(got, "/generate")
			continue
		}
		got = append(got, c.arg)
	}
	assert.Equal(t, append(want, "/generate"), got)

	cancel()
	require.NoError(t, <-done)
}

func TestDispatcher_OtherUsersNotBlocked(t *testing.T) {
	bot := newMockBot()
	h := &recordingHandler{}
	release := make(chan struct{})
	h.gate = func(c call) {
		if c.s.TelegramID == 1 {
			<-release
		}
	}
	d := NewDispatcher(bot, NewRouter(h, nil), 2, nil)
	require.NotEqual(t, shardOf(messageFrom(1, ""), 2), shardOf(messageFrom(2, ""), 2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	bot.updates <- tgbotapi.Update{Message: messageFrom(1, "slow")}
	bot.updates <- tgbotapi.Update{Message: messageFrom(2, "fast")}

	require.Eventually(t, func() bool {
		calls := h.snapshot()
		return len(calls) == 1 && calls[0].arg == "fast"
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return len(h.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestShardOf(t *testing.T) {
	assert.Equal(t, shardOf(messageFrom(11, "a"), 4), shardOf(messageFrom(11, "b"), 4))
	assert.Equal(t, 0, shardOf(&tgbotapi.Message{}, 4))
	noSender := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 6}}
	assert.Equal(t, 2, shardOf(noSender, 4))
	negative := messageFrom(-5, "")
	s := shardOf(negative, 3)
	assert.True(t, s >= 0 && s < 3)
}
