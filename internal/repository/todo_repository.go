package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todo-planner/internal/model"
)

// TodoRepository handles CRUD for todos. Every lookup is scoped to the owner.
type TodoRepository struct {
	db *gorm.DB
}

func NewTodoRepository(db *gorm.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Create(ctx context.Context, todo *model.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("create todo: %w", translate(err))
	}
	return nil
}

// ListByUser returns all todos of a user in insertion order; callers sort.
func (r *TodoRepository) ListByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	var todos []model.Todo
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *TodoRepository) FindByID(ctx context.Context, userID, id string) (*model.Todo, error) {
	var todo model.Todo
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&todo).Error; err != nil {
		return nil, translate(err)
	}
	return &todo, nil
}

// Save replaces a stored todo owned by todo.UserID.
func (r *TodoRepository) Save(ctx context.Context, todo *model.Todo) error {
	res := r.db.WithContext(ctx).Model(&model.Todo{}).
		Where("user_id = ? AND id = ?", todo.UserID, todo.ID).
		Select("*").Omit("created_at").
		Updates(todo)
	if res.Error != nil {
		return fmt.Errorf("save todo: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a todo of the given user.
func (r *TodoRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Todo{})
	if res.Error != nil {
		return fmt.Errorf("delete todo: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
