package presenter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"ghnotifier/internal/feed"
	"ghnotifier/pkg/logx"
)

const (
	cbOpen    = "open"
	cbDismiss = "dismiss"
)

type TelegramConfig struct {
	Token       string
	ChatID      int64
	AppName     string
	PollTimeout time.Duration
}

// sender is the subset of *tele.Bot used to deliver messages.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram presents items as chat messages with inline Open/Dismiss buttons.
// Button presses arrive through the bot's long poll.
type Telegram struct {
	cfg TelegramConfig
	log logx.Logger
	now func() time.Time

	bot  *tele.Bot
	send sender
	seq  atomic.Uint64

	mu      sync.Mutex
	pending map[string]*oneShot
	closed  bool
	wg      sync.WaitGroup
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: telegram token is empty", ErrUnavailable)
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	t := newTelegram(cfg, b, log)
	t.bot = b
	b.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		return c.Respond(&tele.CallbackResponse{Text: t.handleCallback(cb.Data)})
	})
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.log.Info("polling started")
		b.Start() // blocks until Stop
	}()
	return t, nil
}

func newTelegram(cfg TelegramConfig, s sender, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		send:    s,
		pending: make(map[string]*oneShot),
	}
}

func (t *Telegram) Present(ctx context.Context, it feed.Item) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := Format(t.cfg.AppName, it, t.now())
	key := strconv.FormatUint(t.seq.Add(1), 36)

	o := newOneShot()
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: closed", ErrUnavailable)
	}
	t.pending[key] = o
	t.mu.Unlock()

	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		{Text: "Open", Data: cbOpen + ":" + key},
		{Text: "Dismiss", Data: cbDismiss + ":" + key},
	}}}
	text := m.AppName + " · " + m.Summary + "\n" + m.Body
	if _, err := t.send.Send(tele.ChatID(t.cfg.ChatID), text, &tele.SendOptions{
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	}); err != nil {
		t.mu.Lock()
		delete(t.pending, key)
		t.mu.Unlock()
		return nil, fmt.Errorf("telegram send: %w", err)
	}
	return o.signal(), nil
}

// handleCallback resolves the signal addressed by data and returns the text
// shown to the user.
func (t *Telegram) handleCallback(data string) string {
	kind, key, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok || key == "" {
		return ""
	}
	var a Action
	switch kind {
	case cbOpen:
		a = ActionOpen
	case cbDismiss:
		a = ActionDismiss
	default:
		return ""
	}

	t.mu.Lock()
	o, found := t.pending[key]
	if found {
		delete(t.pending, key)
		o.resolve(a)
	}
	t.mu.Unlock()

	if !found {
		return "Expired"
	}
	t.log.Debug("callback", logx.String("action", a.String()))
	if a == ActionOpen {
		return "Opening"
	}
	return "Dismissed"
}

func (t *Telegram) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for k, o := range t.pending {
		o.abandon()
		delete(t.pending, k)
	}
	t.mu.Unlock()

	if t.bot != nil {
		t.bot.Stop()
	}
	t.wg.Wait()
	return nil
}
