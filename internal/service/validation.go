package service

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"todo-planner/internal/model"
	"todo-planner/internal/recurrence"
)

var (
	ErrEmailTaken           = errors.New("email is already registered")
	ErrNicknameTaken        = errors.New("nickname is already in use")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrUserGone             = errors.New("user no longer exists")
	ErrLinkCodeInvalid      = errors.New("link code is invalid or expired")
	ErrNotLinked            = errors.New("telegram chat is not linked")
	ErrChecklistItemMissing = errors.New("checklist item not found")
	ErrNoDueDate            = errors.New("todo has no due date")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

const (
	titleMinLen     = 2
	titleMaxLen     = 50
	contentMaxLen   = 500
	checklistMaxLen = 100
	nicknameMinLen  = 2
	nicknameMaxLen  = 8
	passwordMinLen  = 6
	passwordMaxLen  = 72 // bcrypt input limit
)

var (
	emailPattern    = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	nicknamePattern = regexp.MustCompile(`^[가-힣a-zA-Z0-9]+$`)
	urlPattern      = regexp.MustCompile(`^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w .-]*)*/?$`)

	forbiddenNicknames = []string{"관리자", "admin", "system"}
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	if !emailPattern.MatchString(email) {
		return invalid("email", "enter a valid email address")
	}
	return nil
}

func validateNickname(nickname string) error {
	n := utf8.RuneCountInString(nickname)
	switch {
	case n == 0:
		return invalid("nickname", "nickname is required")
	case n < nicknameMinLen:
		return invalid("nickname", "nickname must be at least %d characters", nicknameMinLen)
	case n > nicknameMaxLen:
		return invalid("nickname", "nickname must be at most %d characters", nicknameMaxLen)
	case !nicknamePattern.MatchString(nickname):
		return invalid("nickname", "nickname may only contain Hangul, letters and digits")
	case slices.Contains(forbiddenNicknames, strings.ToLower(nickname)):
		return invalid("nickname", "this nickname is not allowed")
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < passwordMinLen:
		return invalid("password", "password must be at least %d characters", passwordMinLen)
	case len(password) > passwordMaxLen:
		return invalid("password", "password must be at most %d bytes", passwordMaxLen)
	}
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		return invalid("title", "title is required")
	case n < titleMinLen:
		return invalid("title", "title must be at least %d characters", titleMinLen)
	case n > titleMaxLen:
		return invalid("title", "title must be at most %d characters", titleMaxLen)
	}
	return nil
}

func validateContent(content string) error {
	if utf8.RuneCountInString(content) > contentMaxLen {
		return invalid("content", "content must be at most %d characters", contentMaxLen)
	}
	return nil
}

func validateReferenceURL(url string) error {
	if url != "" && !urlPattern.MatchString(url) {
		return invalid("referenceUrl", "reference URL is malformed")
	}
	return nil
}

// normalizeChecklist trims items and rejects empty or oversized ones.
func normalizeChecklist(items []model.ChecklistItem) ([]model.ChecklistItem, error) {
	out := make([]model.ChecklistItem, 0, len(items))
	for i, item := range items {
		text := strings.TrimSpace(item.Item)
		if text == "" {
			return nil, invalid("checkList", "item %d is empty", i)
		}
		if utf8.RuneCountInString(text) > checklistMaxLen {
			return nil, invalid("checkList", "item %d must be at most %d characters", i, checklistMaxLen)
		}
		out = append(out, model.ChecklistItem{Item: text, Completed: item.Completed})
	}
	return out, nil
}

// RepeatInput is a repeat config as submitted by clients. A nil Interval
// defaults to 1; an explicit value must be at least 1.
type RepeatInput struct {
	Kind     model.RepeatKind
	Interval *int
	Weekdays []int
	EndDate  *time.Time
}

func (in RepeatInput) normalize() (model.Repeat, error) {
	r := model.Repeat{
		Kind:     in.Kind,
		Interval: 1,
		EndDate:  in.EndDate,
	}
	if r.Kind == "" {
		r.Kind = model.RepeatNone
	}
	if in.Interval != nil {
		r.Interval = *in.Interval
	}
	if len(in.Weekdays) > 0 {
		days := slices.Clone(in.Weekdays)
		slices.Sort(days)
		r.Weekdays = slices.Compact(days)
	}
	if err := recurrence.Validate(r); err != nil {
		msg := strings.TrimPrefix(err.Error(), recurrence.ErrInvalidConfiguration.Error()+": ")
		return model.Repeat{}, &ValidationError{Field: "repeat", Message: msg, Err: err}
	}
	return r, nil
}
