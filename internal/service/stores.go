package service

import (
	"context"

	"todo-planner/internal/model"
)

// UserStore persists accounts. Implemented by repository.UserRepository and
// mongostore.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByLinkCode(ctx context.Context, code string) (*model.User, error)
	FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error)
	NicknameTaken(ctx context.Context, nickname, excludeID string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	ListLinked(ctx context.Context) ([]model.User, error)
}

// TodoStore persists todos, always scoped to their owner.
type TodoStore interface {
	Create(ctx context.Context, todo *model.Todo) error
	ListByUser(ctx context.Context, userID string) ([]model.Todo, error)
	FindByID(ctx context.Context, userID, id string) (*model.Todo, error)
	Save(ctx context.Context, todo *model.Todo) error
	Delete(ctx context.Context, userID, id string) error
}

// Notifier delivers a formatted message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}
