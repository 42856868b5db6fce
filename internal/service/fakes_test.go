package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	items map[string]model.User
}

func newMemUsers() *memUsers {
	return &memUsers{items: make(map[string]model.User)}
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == user.Email || u.Nickname == user.Nickname {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.items[user.ID] = *user
	return nil
}

func (m *memUsers) find(match func(model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.Email == email })
}

func (m *memUsers) FindByLinkCode(_ context.Context, code string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.LinkCode != "" && u.LinkCode == code })
}

func (m *memUsers) FindByTelegramChat(_ context.Context, chatID int64) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.TelegramChatID == chatID })
}

func (m *memUsers) NicknameTaken(_ context.Context, nickname, excludeID string) (bool, error) {
	_, err := m.find(func(u model.User) bool { return u.Nickname == nickname && u.ID != excludeID })
	return err == nil, nil
}

func (m *memUsers) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	m.items[user.ID] = *user
	return nil
}

func (m *memUsers) ListLinked(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.items {
		if u.TelegramChatID != 0 {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b model.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

type memTodos struct {
	mu      sync.Mutex
	items   map[string]model.Todo
	clock   time.Time
	saveErr error
}

func newMemTodos() *memTodos {
	return &memTodos{
		items: make(map[string]model.Todo),
		clock: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func copyTodo(t model.Todo) model.Todo {
	t.CheckList = slices.Clone(t.CheckList)
	t.Repeat.Weekdays = slices.Clone(t.Repeat.Weekdays)
	return t
}

func (m *memTodos) Create(_ context.Context, todo *model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	// Strictly increasing timestamps keep creation order observable.
	m.clock = m.clock.Add(time.Second)
	todo.CreatedAt = m.clock
	todo.UpdatedAt = m.clock
	m.items[todo.ID] = copyTodo(*todo)
	return nil
}

func (m *memTodos) ListByUser(_ context.Context, userID string) ([]model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Todo
	for _, t := range m.items {
		if t.UserID == userID {
			out = append(out, copyTodo(t))
		}
	}
	slices.SortFunc(out, func(a, b model.Todo) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (m *memTodos) FindByID(_ context.Context, userID, id string) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := copyTodo(t)
	return &cp, nil
}

func (m *memTodos) Save(_ context.Context, todo *model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	t, ok := m.items[todo.ID]
	if !ok || t.UserID != todo.UserID {
		return repository.ErrNotFound
	}
	m.items[todo.ID] = copyTodo(*todo)
	return nil
}

func (m *memTodos) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int64]bool
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[chatID] {
		return errors.New("chat blocked the bot")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}
