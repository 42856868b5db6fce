package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/logger"
)

// MaxMessageLen is Telegram's limit for a single text message.
const MaxMessageLen = 4096

// ErrChatUnavailable means the chat blocked the bot or no longer exists.
var ErrChatUnavailable = errors.New("telegram chat unavailable")

// Sender is the part of tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers HTML-formatted notifications through the Bot API.
type Telegram struct {
	api Sender
}

func NewTelegram(api Sender) *Telegram {
	return &Telegram{api: api}
}

// Send posts text to chatID, splitting it on line boundaries when it exceeds
// the message size limit.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range Split(text, MaxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.api.Send(msg); err != nil {
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && chatUnavailable(apiErr) {
				logger.Warn("telegram chat unavailable", "chat", chatID, "err", apiErr.Message)
				return fmt.Errorf("%w: %s", ErrChatUnavailable, apiErr.Message)
			}
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// chatUnavailable reports whether the API refused the message because of the
// chat itself. Other 400 answers, such as HTML parse failures, are not.
func chatUnavailable(err *tgbotapi.Error) bool {
	switch err.Code {
	case 403:
		return true
	case 400:
		return strings.Contains(strings.ToLower(err.Message), "chat not found")
	}
	return false
}

// Split breaks text into pieces no longer than limit bytes, preferring line
// boundaries. A single line longer than limit is cut on rune boundaries.
func Split(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if cur.Len()+len(line) > limit {
			flush()
		}
		for len(line) > limit {
			cut := limit
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
