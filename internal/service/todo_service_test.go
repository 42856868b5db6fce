package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

func newTestTodos() (*TodoService, *memTodos, *model.User) {
	store := newMemTodos()
	user := &model.User{ID: "user-1", Timezone: "UTC"}
	return NewTodoService(store, time.UTC), store, user
}

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d, h, minute int) time.Time {
	return time.Date(y, m, d, h, minute, 0, 0, time.UTC)
}

func TestTodoServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()

	due := date(2026, time.March, 2, 9, 0)
	todo, err := svc.Create(ctx, user, TodoInput{
		Title:     "  Water plants ",
		DueDate:   &due,
		Repeat:    RepeatInput{Kind: model.RepeatWeekly, Weekdays: []int{3, 1}},
		CheckList: []model.ChecklistItem{{Item: "balcony"}, {Item: "kitchen"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if todo.ID == "" || todo.UserID != user.ID {
		t.Errorf("unexpected identity: %+v", todo)
	}
	if todo.Title != "Water plants" {
		t.Errorf("Title = %q", todo.Title)
	}
	if todo.Repeat.Interval != 1 {
		t.Errorf("Interval = %d, want default 1", todo.Repeat.Interval)
	}
	if todo.Repeat.Weekdays[0] != 1 || todo.Repeat.Weekdays[1] != 3 {
		t.Errorf("Weekdays = %v, want sorted", todo.Repeat.Weekdays)
	}

	tests := []struct {
		name  string
		input TodoInput
		field string
	}{
		{"short title", TodoInput{Title: "x"}, "title"},
		{"long title", TodoInput{Title: "this title is definitely longer than fifty characters"}, "title"},
		{"bad url", TodoInput{Title: "ok title", ReferenceURL: "not a url"}, "referenceUrl"},
		{"explicit zero interval", TodoInput{Title: "ok title", Repeat: RepeatInput{Kind: model.RepeatDaily, Interval: ptr(0)}}, "repeat"},
		{"bad weekday", TodoInput{Title: "ok title", Repeat: RepeatInput{Kind: model.RepeatWeekly, Weekdays: []int{7}}}, "repeat"},
		{"unknown kind", TodoInput{Title: "ok title", Repeat: RepeatInput{Kind: "fortnightly"}}, "repeat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, user, tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestTodoServiceListOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()

	mk := func(title string, due *time.Time, done bool) {
		t.Helper()
		if _, err := svc.Create(ctx, user, TodoInput{Title: title, DueDate: due, Completed: done}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	mk("undated old", nil, false)
	mk("due later", ptr(date(2026, time.May, 1, 0, 0)), false)
	mk("finished", ptr(date(2026, time.January, 1, 0, 0)), true)
	mk("due sooner", ptr(date(2026, time.April, 1, 0, 0)), false)
	mk("undated new", nil, false)

	if _, err := svc.Create(ctx, &model.User{ID: "someone-else"}, TodoInput{Title: "not mine"}); err != nil {
		t.Fatalf("create other: %v", err)
	}

	todos, err := svc.List(ctx, user)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"due sooner", "due later", "undated new", "undated old", "finished"}
	if len(todos) != len(want) {
		t.Fatalf("got %d todos, want %d", len(todos), len(want))
	}
	for i, title := range want {
		if todos[i].Title != title {
			t.Errorf("position %d = %q, want %q", i, todos[i].Title, title)
		}
	}
}

func TestTodoServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()
	due := date(2026, time.March, 2, 9, 0)
	todo, err := svc.Create(ctx, user, TodoInput{Title: "Draft report", DueDate: &due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, user, todo.ID, TodoPatch{
		Content:      ptr("first pass"),
		ClearDueDate: true,
		Repeat:       &RepeatInput{Kind: model.RepeatMonthly, Interval: ptr(2)},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Draft report" || updated.Content != "first pass" {
		t.Errorf("unexpected fields: %+v", updated)
	}
	if updated.DueDate != nil {
		t.Errorf("DueDate = %v, want cleared", updated.DueDate)
	}
	if updated.Repeat.Kind != model.RepeatMonthly || updated.Repeat.Interval != 2 {
		t.Errorf("Repeat = %+v", updated.Repeat)
	}

	if _, err := svc.Update(ctx, user, todo.ID, TodoPatch{Title: ptr("")}); err == nil {
		t.Error("expected error for empty title")
	}
	if _, err := svc.Update(ctx, &model.User{ID: "intruder"}, todo.ID, TodoPatch{Title: ptr("mine now")}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign todo, got %v", err)
	}
}

func TestTodoServiceToggleSpawnsNextOccurrence(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newTestTodos()

	// Monday
	due := date(2026, time.March, 2, 9, 0)
	todo, err := svc.Create(ctx, user, TodoInput{
		Title:     "Gym session",
		DueDate:   &due,
		Repeat:    RepeatInput{Kind: model.RepeatWeekly, Weekdays: []int{1, 3}},
		CheckList: []model.ChecklistItem{{Item: "stretch", Completed: true}, {Item: "run"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, next, err := svc.Toggle(ctx, user, todo.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !done.Completed {
		t.Fatal("todo not completed")
	}
	if next == nil {
		t.Fatal("expected next occurrence")
	}
	if want := date(2026, time.March, 11, 9, 0); !next.DueDate.Equal(want) {
		t.Errorf("next due = %v, want %v", next.DueDate, want)
	}
	if next.Completed || next.Title != todo.Title || next.Repeat.Kind != model.RepeatWeekly {
		t.Errorf("unexpected next todo: %+v", next)
	}
	for _, item := range next.CheckList {
		if item.Completed {
			t.Errorf("checklist item %q carried completion over", item.Item)
		}
	}
	if done.NextOccurrenceID != next.ID {
		t.Errorf("NextOccurrenceID = %q, want %q", done.NextOccurrenceID, next.ID)
	}

	// Reopen and complete again: the series must not fork.
	if _, n, err := svc.Toggle(ctx, user, todo.ID); err != nil || n != nil {
		t.Fatalf("reopen: next=%v err=%v", n, err)
	}
	if _, n, err := svc.Toggle(ctx, user, todo.ID); err != nil || n != nil {
		t.Fatalf("complete again: next=%v err=%v", n, err)
	}
	all, _ := store.ListByUser(ctx, user.ID)
	if len(all) != 2 {
		t.Errorf("got %d todos, want 2", len(all))
	}
}

func TestTodoServiceToggleSaveFailureLeavesNoSuccessor(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newTestTodos()

	due := date(2026, time.March, 2, 9, 0)
	todo, err := svc.Create(ctx, user, TodoInput{
		Title:   "Pay rent",
		DueDate: &due,
		Repeat:  RepeatInput{Kind: model.RepeatMonthly},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.saveErr = errors.New("disk full")
	if _, _, err := svc.Toggle(ctx, user, todo.ID); err == nil {
		t.Fatal("expected toggle to fail")
	}
	if all, _ := store.ListByUser(ctx, user.ID); len(all) != 1 {
		t.Fatalf("got %d todos after failed toggle, want 1", len(all))
	}

	store.saveErr = nil
	_, next, err := svc.Toggle(ctx, user, todo.ID)
	if err != nil || next == nil {
		t.Fatalf("retry: next=%v err=%v", next, err)
	}
	if all, _ := store.ListByUser(ctx, user.ID); len(all) != 2 {
		t.Errorf("got %d todos after retry, want 2", len(all))
	}
}

func TestTodoServiceToggleWithoutSpawn(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()
	due := date(2026, time.March, 31, 9, 0)

	tests := []struct {
		name  string
		input TodoInput
	}{
		{"not repeating", TodoInput{Title: "One-off", DueDate: &due}},
		{"no due date", TodoInput{Title: "Undated", Repeat: RepeatInput{Kind: model.RepeatDaily}}},
		{"series ended", TodoInput{Title: "Last one", DueDate: &due, Repeat: RepeatInput{
			Kind:    model.RepeatMonthly,
			EndDate: ptr(date(2026, time.April, 15, 0, 0)),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			todo, err := svc.Create(ctx, user, tt.input)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			done, next, err := svc.Toggle(ctx, user, todo.ID)
			if err != nil {
				t.Fatalf("toggle: %v", err)
			}
			if !done.Completed || next != nil {
				t.Errorf("completed=%v next=%v", done.Completed, next)
			}
		})
	}
}

func TestTodoServiceToggleUsesUserTimezone(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTodos()
	user := &model.User{ID: "user-seoul", Timezone: "+09:00"}

	// 2026-01-31 20:00 in +09:00 is still January 31; the month step clamps to Feb 28.
	due := date(2026, time.January, 31, 11, 0)
	todo, err := svc.Create(ctx, user, TodoInput{Title: "Pay rent", DueDate: &due, Repeat: RepeatInput{Kind: model.RepeatMonthly}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, next, err := svc.Toggle(ctx, user, todo.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if want := date(2026, time.February, 28, 11, 0); !next.DueDate.Equal(want) {
		t.Errorf("next due = %v, want %v", next.DueDate, want)
	}
	if next.DueDate.Location() != time.UTC {
		t.Errorf("next due stored in %v, want UTC", next.DueDate.Location())
	}
}

func TestTodoServiceSetChecklistItem(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()
	todo, err := svc.Create(ctx, user, TodoInput{Title: "Pack bag", CheckList: []model.ChecklistItem{{Item: "passport"}, {Item: "charger"}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.SetChecklistItem(ctx, user, todo.ID, 1, true)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if updated.CheckList[0].Completed || !updated.CheckList[1].Completed {
		t.Errorf("unexpected checklist: %+v", updated.CheckList)
	}

	for _, idx := range []int{-1, 2} {
		if _, err := svc.SetChecklistItem(ctx, user, todo.ID, idx, true); !errors.Is(err, ErrChecklistItemMissing) {
			t.Errorf("index %d: expected ErrChecklistItemMissing, got %v", idx, err)
		}
	}
}

func TestTodoServiceOccurrences(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()
	due := date(2026, time.March, 1, 8, 0)
	todo, err := svc.Create(ctx, user, TodoInput{Title: "Standup", DueDate: &due, Repeat: RepeatInput{Kind: model.RepeatDaily, Interval: ptr(2)}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	dates, err := svc.Occurrences(ctx, user, todo.ID, 3)
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	want := []time.Time{date(2026, time.March, 3, 8, 0), date(2026, time.March, 5, 8, 0), date(2026, time.March, 7, 8, 0)}
	if len(dates) != len(want) {
		t.Fatalf("got %d dates, want %d", len(dates), len(want))
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("date %d = %v, want %v", i, dates[i], want[i])
		}
	}

	if _, err := svc.Occurrences(ctx, user, todo.ID, MaxOccurrences+1); err == nil {
		t.Error("expected limit error")
	}

	undated, _ := svc.Create(ctx, user, TodoInput{Title: "Someday"})
	if _, err := svc.Occurrences(ctx, user, undated.ID, 3); !errors.Is(err, ErrNoDueDate) {
		t.Errorf("expected ErrNoDueDate, got %v", err)
	}

	oneOff, _ := svc.Create(ctx, user, TodoInput{Title: "Dentist", DueDate: &due})
	dates, err = svc.Occurrences(ctx, user, oneOff.ID, 3)
	if err != nil || len(dates) != 0 {
		t.Errorf("non-repeating todo: %v, %v", dates, err)
	}
}

func TestTodoServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newTestTodos()
	todo, _ := svc.Create(ctx, user, TodoInput{Title: "Temporary"})

	if err := svc.Delete(ctx, &model.User{ID: "intruder"}, todo.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign delete, got %v", err)
	}
	if err := svc.Delete(ctx, user, todo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, user, todo.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
