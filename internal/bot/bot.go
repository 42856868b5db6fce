package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/logger"
	"todo-planner/internal/model"
	"todo-planner/internal/notify"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

const (
	cbDonePrefix = "done:"

	menuLabelTodos  = "📋 Todos"
	menuLabelReport = "📊 Report"
	menuLabelHelp   = "ℹ️ Help"

	maxButtons = 10
)

// API is the subset of tgbotapi.BotAPI the bot relies on.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers private chats: linking accounts, listing todos and sending digests.
type Bot struct {
	api    API
	auth   *service.AuthService
	todos  *service.TodoService
	digest *service.DigestService
	now    func() time.Time
}

func New(api API, auth *service.AuthService, todos *service.TodoService, digest *service.DigestService) *Bot {
	return &Bot{api: api, auth: auth, todos: todos, digest: digest, now: time.Now}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info("start polling telegram updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.handleUpdate(ctx, update); err != nil {
			logger.Error("handle telegram update", "update", update.UpdateID, "err", err)
		}
	}
	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return nil
		}
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		logger.Debug("telegram command", "chat", msg.Chat.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelTodos:
		return b.handleTodos(ctx, msg.Chat.ID)
	case menuLabelReport:
		return b.handleReport(ctx, msg.Chat.ID)
	case menuLabelHelp:
		return b.sendText(msg.Chat.ID, helpText)
	}
	return b.sendText(msg.Chat.ID, "I did not get that. Send /link &lt;code&gt; to connect your account or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		if code := strings.TrimSpace(msg.CommandArguments()); code != "" {
			return b.handleLink(ctx, chatID, code)
		}
		return b.handleStart(ctx, msg)
	case "link":
		code := strings.TrimSpace(msg.CommandArguments())
		if code == "" {
			return b.sendText(chatID, "Usage: /link &lt;code&gt;. Get a code from the app settings.")
		}
		return b.handleLink(ctx, chatID, code)
	case "todos":
		return b.handleTodos(ctx, chatID)
	case "report":
		return b.handleReport(ctx, chatID)
	case "unlink":
		return b.handleUnlink(ctx, chatID)
	case "help":
		return b.sendText(chatID, helpText)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /link &lt;code&gt; connect this chat to your account\n" +
	"• /todos show open todos and complete them with a tap\n" +
	"• /report send the daily digest now\n" +
	"• /unlink stop notifications in this chat\n" +
	"• /help this message"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := "there"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I send your todo digest every morning.</b>\n\n", html.EscapeString(name))

	user, err := b.auth.UserByChat(ctx, msg.Chat.ID)
	switch {
	case err == nil:
		text += fmt.Sprintf("This chat is linked to <b>%s</b>.\n\n", html.EscapeString(user.Nickname))
	case errors.Is(err, service.ErrNotLinked):
		text += "This chat is not linked yet. Create a code in the app and send /link &lt;code&gt;.\n\n"
	default:
		return err
	}
	return b.sendText(msg.Chat.ID, text+helpText)
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, code string) error {
	user, err := b.auth.LinkTelegram(ctx, code, chatID)
	if err != nil {
		if errors.Is(err, service.ErrLinkCodeInvalid) {
			return b.sendText(chatID, "⚠️ That code is invalid or expired. Create a new one in the app.")
		}
		return err
	}
	logger.Info("telegram chat linked", "chat", chatID, "user", user.ID)
	return b.sendText(chatID, fmt.Sprintf("✅ Linked to <b>%s</b>. You will get a digest every day.", html.EscapeString(user.Nickname)))
}

func (b *Bot) handleUnlink(ctx context.Context, chatID int64) error {
	user, err := b.linkedUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	if _, err := b.auth.UnlinkTelegram(ctx, user); err != nil {
		return err
	}
	return b.sendText(chatID, "🔕 This chat is unlinked. Notifications are off.")
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	user, err := b.linkedUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	text, err := b.digest.Summary(ctx, *user, b.now())
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleTodos(ctx context.Context, chatID int64) error {
	user, err := b.linkedUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	body, err := b.digest.OpenTodos(ctx, *user, b.now())
	if err != nil {
		return fmt.Errorf("render todos: %w", err)
	}
	todos, err := b.todos.List(ctx, user)
	if err != nil {
		return fmt.Errorf("list todos: %w", err)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, todo := range todos {
		if todo.Completed || len(rows) == maxButtons {
			continue
		}
		label := fmt.Sprintf("✅ %s", shortTitle(todo.Title, 24))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, cbDonePrefix+todo.ID)))
	}

	var markup any
	if len(rows) > 0 {
		markup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return b.send(chatID, "📋 <b>Open todos</b>\n"+body, markup)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.Warn("callback ack", "err", err)
	}
	if !strings.HasPrefix(cb.Data, cbDonePrefix) {
		return nil
	}

	chatID := cb.Message.Chat.ID
	user, err := b.linkedUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	id := strings.TrimPrefix(cb.Data, cbDonePrefix)
	todo, err := b.todos.Get(ctx, user, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.sendText(chatID, "That todo no longer exists.")
		}
		return err
	}
	if todo.Completed {
		return b.sendText(chatID, fmt.Sprintf("<b>%s</b> is already done.", html.EscapeString(todo.Title)))
	}

	done, next, err := b.todos.Toggle(ctx, user, id)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🎉 <b>%s</b> is done.", html.EscapeString(done.Title))
	if next != nil && next.DueDate != nil {
		text += fmt.Sprintf("\n♻️ Next one is due %s.", formatDue(next, user))
	}
	return b.sendText(chatID, text)
}

// linkedUser returns the account for chatID. It replies with a hint and
// returns nil when the chat is not linked.
func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := b.auth.UserByChat(ctx, chatID)
	if errors.Is(err, service.ErrNotLinked) {
		return nil, b.sendText(chatID, "This chat is not linked yet. Send /link &lt;code&gt; first.")
	}
	return user, err
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.send(chatID, text, mainMenuKeyboard())
}

// send posts text in chunks that fit a single message. The markup goes on
// the last chunk only.
func (b *Bot) send(chatID int64, text string, markup any) error {
	chunks := notify.Split(text, notify.MaxMessageLen)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if i == len(chunks)-1 {
			msg.ReplyMarkup = markup
		}
		if _, err := b.api.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTodos),
			tgbotapi.NewKeyboardButton(menuLabelReport),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func formatDue(todo *model.Todo, user *model.User) string {
	loc, err := service.LocationFromTZ(user.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return todo.DueDate.In(loc).Format("2006-01-02 15:04")
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	return string(runes[:maxLen-1]) + "…"
}
