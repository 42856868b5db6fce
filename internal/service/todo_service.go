package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"todo-planner/internal/logger"
	"todo-planner/internal/model"
	"todo-planner/internal/recurrence"
)

const (
	DefaultOccurrences = 5
	MaxOccurrences     = 50
)

// TodoInput represents data required to create a todo.
type TodoInput struct {
	Title        string
	Content      string
	Completed    bool
	DueDate      *time.Time
	Repeat       RepeatInput
	ReferenceURL string
	CheckList    []model.ChecklistItem
}

// TodoPatch lists changes to an existing todo. Nil fields are left as is;
// ClearDueDate removes the due date.
type TodoPatch struct {
	Title        *string
	Content      *string
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
	Repeat       *RepeatInput
	ReferenceURL *string
	CheckList    *[]model.ChecklistItem
}

// TodoService wraps todo-related business logic.
type TodoService struct {
	todos      TodoStore
	defaultLoc *time.Location
}

func NewTodoService(todos TodoStore, defaultLoc *time.Location) *TodoService {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &TodoService{todos: todos, defaultLoc: defaultLoc}
}

// List returns the user's todos: open before completed, earliest due date
// first (undated last), newest first among equals.
func (s *TodoService) List(ctx context.Context, user *model.User) ([]model.Todo, error) {
	todos, err := s.todos.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	SortTodos(todos)
	return todos, nil
}

func SortTodos(todos []model.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i], todos[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func (s *TodoService) Get(ctx context.Context, user *model.User, id string) (*model.Todo, error) {
	return s.todos.FindByID(ctx, user.ID, id)
}

func (s *TodoService) Create(ctx context.Context, user *model.User, input TodoInput) (*model.Todo, error) {
	todo := &model.Todo{
		UserID:       user.ID,
		Title:        strings.TrimSpace(input.Title),
		Content:      strings.TrimSpace(input.Content),
		Completed:    input.Completed,
		DueDate:      toUTC(input.DueDate),
		ReferenceURL: strings.TrimSpace(input.ReferenceURL),
	}
	if err := validateTitle(todo.Title); err != nil {
		return nil, err
	}
	if err := validateContent(todo.Content); err != nil {
		return nil, err
	}
	if err := validateReferenceURL(todo.ReferenceURL); err != nil {
		return nil, err
	}
	repeat, err := input.Repeat.normalize()
	if err != nil {
		return nil, err
	}
	todo.Repeat = repeat
	if todo.CheckList, err = normalizeChecklist(input.CheckList); err != nil {
		return nil, err
	}

	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, user *model.User, id string, patch TodoPatch) (*model.Todo, error) {
	todo, err := s.todos.FindByID(ctx, user.ID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		todo.Title = title
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if err := validateContent(content); err != nil {
			return nil, err
		}
		todo.Content = content
	}
	if patch.Completed != nil {
		todo.Completed = *patch.Completed
	}
	switch {
	case patch.ClearDueDate:
		todo.DueDate = nil
	case patch.DueDate != nil:
		todo.DueDate = toUTC(patch.DueDate)
	}
	if patch.Repeat != nil {
		repeat, err := patch.Repeat.normalize()
		if err != nil {
			return nil, err
		}
		todo.Repeat = repeat
	}
	if patch.ReferenceURL != nil {
		url := strings.TrimSpace(*patch.ReferenceURL)
		if err := validateReferenceURL(url); err != nil {
			return nil, err
		}
		todo.ReferenceURL = url
	}
	if patch.CheckList != nil {
		items, err := normalizeChecklist(*patch.CheckList)
		if err != nil {
			return nil, err
		}
		todo.CheckList = items
	}

	if err := s.todos.Save(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, user *model.User, id string) error {
	return s.todos.Delete(ctx, user.ID, id)
}

// Toggle flips the completed flag. Completing a repeating todo with a due date
// creates the next occurrence once; the new todo is returned as the second value.
func (s *TodoService) Toggle(ctx context.Context, user *model.User, id string) (*model.Todo, *model.Todo, error) {
	todo, err := s.todos.FindByID(ctx, user.ID, id)
	if err != nil {
		return nil, nil, err
	}
	todo.Completed = !todo.Completed

	var next *model.Todo
	if todo.Completed && todo.NextOccurrenceID == "" {
		next, err = s.spawnNext(ctx, user, todo)
		if err != nil {
			return nil, nil, err
		}
		if next != nil {
			todo.NextOccurrenceID = next.ID
		}
	}

	if err := s.todos.Save(ctx, todo); err != nil {
		if next != nil {
			if derr := s.todos.Delete(ctx, user.ID, next.ID); derr != nil {
				logger.Error("remove orphaned occurrence", "todo", todo.ID, "next", next.ID, "err", derr)
			}
		}
		return nil, nil, err
	}
	return todo, next, nil
}

func (s *TodoService) spawnNext(ctx context.Context, user *model.User, todo *model.Todo) (*model.Todo, error) {
	if !todo.Repeat.Repeats() || todo.DueDate == nil {
		return nil, nil
	}
	loc := userLocation(user, s.defaultLoc)
	due, ok, err := recurrence.Next(todo.DueDate.In(loc), todo.Repeat)
	if err != nil {
		return nil, &ValidationError{Field: "repeat", Message: err.Error(), Err: err}
	}
	if !ok {
		logger.Debug("recurrence ended", "todo", todo.ID)
		return nil, nil
	}

	due = due.UTC()
	next := &model.Todo{
		UserID:       todo.UserID,
		Title:        todo.Title,
		Content:      todo.Content,
		DueDate:      &due,
		Repeat:       cloneRepeat(todo.Repeat),
		ReferenceURL: todo.ReferenceURL,
	}
	if len(todo.CheckList) > 0 {
		next.CheckList = make([]model.ChecklistItem, len(todo.CheckList))
		for i, item := range todo.CheckList {
			next.CheckList[i] = model.ChecklistItem{Item: item.Item}
		}
	}
	if err := s.todos.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("create next occurrence: %w", err)
	}
	logger.Info("next occurrence created", "todo", todo.ID, "next", next.ID, "due", due)
	return next, nil
}

// SetChecklistItem marks a single checklist entry as done or not done.
func (s *TodoService) SetChecklistItem(ctx context.Context, user *model.User, id string, index int, completed bool) (*model.Todo, error) {
	todo, err := s.todos.FindByID(ctx, user.ID, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(todo.CheckList) {
		return nil, ErrChecklistItemMissing
	}
	todo.CheckList[index].Completed = completed
	if err := s.todos.Save(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// Occurrences previews the next limit dates of a todo's series in the user's timezone.
func (s *TodoService) Occurrences(ctx context.Context, user *model.User, id string, limit int) ([]time.Time, error) {
	if limit < 1 || limit > MaxOccurrences {
		return nil, invalid("limit", "limit must be between 1 and %d", MaxOccurrences)
	}
	todo, err := s.todos.FindByID(ctx, user.ID, id)
	if err != nil {
		return nil, err
	}
	if todo.DueDate == nil {
		return nil, ErrNoDueDate
	}
	loc := userLocation(user, s.defaultLoc)
	dates, err := recurrence.Series(todo.DueDate.In(loc), todo.Repeat, limit)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidConfiguration) {
			return nil, &ValidationError{Field: "repeat", Message: err.Error(), Err: err}
		}
		return nil, err
	}
	if dates == nil {
		dates = []time.Time{}
	}
	return dates, nil
}

func cloneRepeat(r model.Repeat) model.Repeat {
	out := r
	out.Weekdays = slices.Clone(r.Weekdays)
	if r.EndDate != nil {
		end := *r.EndDate
		out.EndDate = &end
	}
	return out
}

func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tt := t.UTC()
	return &tt
}
