package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"awsbot/app/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
	"golang.org/x/time/rate"
)

const (
	maxMessageLength = 4096
	maxVoiceNoteSize = 20 * 1024 * 1024
	pollTimeout      = 60
)

// Update is an inbound user message.
type Update struct {
	ChatID      int64
	MessageID   int
	Username    string
	Text        string
	VoiceFileID string
}

type UpdateHandler func(update Update)

type Client struct {
	bot     *tgbotapi.BotAPI
	http    *http.Client
	limiter *rate.Limiter

	mutex   sync.RWMutex
	handler UpdateHandler
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Authorized on telegram", "username", bot.Self.UserName)

	return &Client{
		bot:     bot,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}, nil
}

func ConversationID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (c *Client) SetListener(handler UpdateHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.handler = handler
}

// Run long-polls updates until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	slog.Info("Telegram receiver started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}

			update, ok := toUpdate(raw)
			if !ok {
				continue
			}

			c.mutex.RLock()
			handler := c.handler
			c.mutex.RUnlock()

			if handler != nil {
				handler(update)
			}
		}
	}
}

func toUpdate(raw tgbotapi.Update) (Update, bool) {
	msg := raw.Message
	if msg == nil || msg.Chat == nil {
		return Update{}, false
	}

	update := Update{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      strings.TrimSpace(msg.Text),
	}

	if msg.From != nil {
		update.Username = msg.From.UserName
	}

	if msg.Voice != nil {
		update.VoiceFileID = msg.Voice.FileID
	}

	if update.Text == "" && update.VoiceFileID == "" {
		return Update{}, false
	}

	return update, true
}

func (c *Client) send(ctx context.Context, chattable tgbotapi.Chattable) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := c.bot.Send(chattable); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}

	return nil
}

// SendText delivers text, splitting it into chunks Telegram accepts.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitText(text, maxMessageLength) {
		if err := c.send(ctx, tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	return c.send(ctx, tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
		Name:  "reply.mp3",
		Bytes: audio,
	}))
}

func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	return c.send(ctx, tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

// DownloadFile fetches an uploaded file, the caller closes the reader.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: status=%d", resp.StatusCode)
	}

	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxVoiceNoteSize), resp.Body}, nil
}

// splitText cuts text into pieces of at most limit runes, preferring line breaks.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var result []string
	runes := []rune(text)

	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}

		result = append(result, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}

	if len(runes) > 0 {
		result = append(result, string(runes))
	}

	return result
}
