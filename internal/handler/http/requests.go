package httpapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

// Layouts accepted for dates without an explicit offset, as sent by HTML
// date and datetime-local inputs. They are read in the user's timezone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// dateField tracks whether a date was sent at all, sent as null or "", or sent with a value.
type dateField struct {
	set bool
	raw string
}

func (d *dateField) UnmarshalJSON(b []byte) error {
	d.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		d.raw = ""
		return nil
	}
	return json.Unmarshal(b, &d.raw)
}

func (d dateField) cleared() bool {
	return d.set && strings.TrimSpace(d.raw) == ""
}

// resolve parses the value. It returns nil when the field is absent or cleared.
func (d dateField) resolve(field string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(d.raw)
	if !d.set || raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t, nil
		}
	}
	return nil, &service.ValidationError{Field: field, Message: field + " is not a valid date"}
}

type repeatRequest struct {
	Type     model.RepeatKind `json:"type"`
	Interval *int             `json:"interval"`
	Weekdays []int            `json:"weekdays"`
	EndDate  dateField        `json:"endDate"`
}

func (r repeatRequest) input(loc *time.Location) (service.RepeatInput, error) {
	end, err := r.EndDate.resolve("repeat.endDate", loc)
	if err != nil {
		return service.RepeatInput{}, err
	}
	if end != nil && len(strings.TrimSpace(r.EndDate.raw)) == len("2006-01-02") {
		// A bare date ends the series after that whole day.
		last := end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		end = &last
	}
	return service.RepeatInput{Kind: r.Type, Interval: r.Interval, Weekdays: r.Weekdays, EndDate: end}, nil
}

type todoRequest struct {
	Title        *string                `json:"title"`
	Content      *string                `json:"content"`
	Completed    *bool                  `json:"completed"`
	DueDate      dateField              `json:"dueDate"`
	Repeat       *repeatRequest         `json:"repeat"`
	ReferenceURL *string                `json:"referenceUrl"`
	CheckList    *[]model.ChecklistItem `json:"checkList"`
}

func (req todoRequest) createInput(loc *time.Location) (service.TodoInput, error) {
	due, err := req.DueDate.resolve("dueDate", loc)
	if err != nil {
		return service.TodoInput{}, err
	}
	in := service.TodoInput{
		Title:        deref(req.Title),
		Content:      deref(req.Content),
		Completed:    req.Completed != nil && *req.Completed,
		DueDate:      due,
		ReferenceURL: deref(req.ReferenceURL),
	}
	if req.Repeat != nil {
		if in.Repeat, err = req.Repeat.input(loc); err != nil {
			return service.TodoInput{}, err
		}
	}
	if req.CheckList != nil {
		in.CheckList = *req.CheckList
	}
	return in, nil
}

func (req todoRequest) patch(loc *time.Location) (service.TodoPatch, error) {
	due, err := req.DueDate.resolve("dueDate", loc)
	if err != nil {
		return service.TodoPatch{}, err
	}
	p := service.TodoPatch{
		Title:        req.Title,
		Content:      req.Content,
		Completed:    req.Completed,
		DueDate:      due,
		ClearDueDate: req.DueDate.cleared(),
		ReferenceURL: req.ReferenceURL,
		CheckList:    req.CheckList,
	}
	if req.Repeat != nil {
		repeat, err := req.Repeat.input(loc)
		if err != nil {
			return service.TodoPatch{}, err
		}
		p.Repeat = &repeat
	}
	return p, nil
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Nickname *string `json:"nickname"`
	Timezone *string `json:"timezone"`
}

type checklistRequest struct {
	Completed *bool `json:"completed"`
}

// todoView is the wire form of a todo with its computed day count.
type todoView struct {
	model.Todo
	DDay *int `json:"dDay"`
}

func newTodoView(t model.Todo, now time.Time) todoView {
	if t.CheckList == nil {
		t.CheckList = []model.ChecklistItem{}
	}
	if t.Repeat.Weekdays == nil {
		t.Repeat.Weekdays = []int{}
	}
	if t.Repeat.Kind == "" {
		t.Repeat.Kind = model.RepeatNone
	}
	view := todoView{Todo: t}
	if t.DueDate != nil {
		days := service.DaysUntil(*t.DueDate, now)
		view.DDay = &days
	}
	return view
}

func newTodoViews(todos []model.Todo, now time.Time) []todoView {
	out := make([]todoView, 0, len(todos))
	for _, t := range todos {
		out = append(out, newTodoView(t, now))
	}
	return out
}

type userView struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Nickname       string    `json:"nickname"`
	Timezone       string    `json:"timezone"`
	TelegramLinked bool      `json:"telegramLinked"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newUserView(u *model.User) userView {
	return userView{
		ID:             u.ID,
		Email:          u.Email,
		Nickname:       u.Nickname,
		Timezone:       u.Timezone,
		TelegramLinked: u.TelegramLinked(),
		CreatedAt:      u.CreatedAt,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
