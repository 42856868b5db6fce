package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"todo-planner/internal/logger"
	"todo-planner/internal/model"
	"todo-planner/internal/recurrence"
)

const dueSoonWindow = 48 * time.Hour

// DigestService builds human-readable summaries for daily notifications.
type DigestService struct {
	users      UserStore
	todos      TodoStore
	notifier   Notifier
	defaultLoc *time.Location
}

func NewDigestService(users UserStore, todos TodoStore, notifier Notifier, defaultLoc *time.Location) *DigestService {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &DigestService{users: users, todos: todos, notifier: notifier, defaultLoc: defaultLoc}
}

// Summary renders the daily digest for user as Telegram HTML.
func (s *DigestService) Summary(ctx context.Context, user model.User, now time.Time) (string, error) {
	open, err := s.OpenTodos(ctx, user, now)
	if err != nil {
		return "", err
	}
	loc := userLocation(&user, s.defaultLoc)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.In(loc).Format("2006-01-02 (Mon)")))
	builder.WriteString("🔥 <b>Open todos</b>\n")
	builder.WriteString(open)
	return strings.TrimSpace(builder.String()), nil
}

// OpenTodos renders the user's unfinished todos, one block per todo.
func (s *DigestService) OpenTodos(ctx context.Context, user model.User, now time.Time) (string, error) {
	todos, err := s.todos.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	SortTodos(todos)
	loc := userLocation(&user, s.defaultLoc)
	now = now.In(loc)

	var builder strings.Builder
	count := 0
	for _, todo := range todos {
		if todo.Completed {
			continue
		}
		builder.WriteString(formatTodo(todo, now))
		count++
	}
	if count == 0 {
		builder.WriteString("   nothing open\n")
	}
	return builder.String(), nil
}

// SendAll sends the digest to every user with a linked chat. Failures for a
// single user are logged and do not stop the run.
func (s *DigestService) SendAll(ctx context.Context, now time.Time) error {
	users, err := s.users.ListLinked(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := s.Summary(ctx, user, now)
		if err != nil {
			logger.Warn("build digest", "user", user.ID, "err", err)
			continue
		}
		if err := s.notifier.Send(ctx, user.TelegramChatID, text); err != nil {
			logger.Warn("send digest", "user", user.ID, "err", err)
			continue
		}
		sent++
	}
	logger.Info("digest run finished", "users", len(users), "sent", sent)
	return nil
}

func formatTodo(todo model.Todo, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if todo.DueDate != nil {
		d := todo.DueDate.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= dueSoonWindow:
			icon = "⏳"
		}
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(todo.Title)))

	if todo.DueDate != nil {
		d := todo.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s · <b>overdue</b>", d.Format("2006-01-02 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s · D-%d", d.Format("2006-01-02 15:04"), DaysUntil(d, now)))
		}
		if todo.Repeat.Repeats() {
			if next, ok, err := recurrence.Next(d, todo.Repeat); err == nil && ok {
				sb.WriteString(fmt.Sprintf("\n   ♻️ then %s", next.Format("2006-01-02 15:04")))
			} else {
				sb.WriteString("\n   ♻️ last in series")
			}
		}
	}

	if done, total := todo.ChecklistProgress(); total > 0 {
		sb.WriteString(fmt.Sprintf("\n   ☑️ %d/%d", done, total))
	}
	if todo.Content != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(todo.Content)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// DaysUntil is the number of started days between now and due, rounded up.
// It is zero or negative once due has passed.
func DaysUntil(due, now time.Time) int {
	diff := due.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff > 0 && diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}
