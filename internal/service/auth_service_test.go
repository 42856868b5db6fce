package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"todo-planner/internal/model"
)

func newTestAuth(t *testing.T) (*AuthService, *memUsers) {
	t.Helper()
	users := newMemUsers()
	svc := NewAuthService(users, "test-secret", 24*time.Hour, "Asia/Seoul")
	svc.hashCost = bcrypt.MinCost
	return svc, users
}

func mustRegister(t *testing.T, svc *AuthService, email, nickname string) *model.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{Email: email, Password: "hunter22", Nickname: nickname})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func TestAuthServiceRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	user := mustRegister(t, svc, "  Kim@Example.COM ", " kim ")
	if user.Email != "kim@example.com" {
		t.Errorf("Email = %q, want normalized", user.Email)
	}
	if user.Nickname != "kim" {
		t.Errorf("Nickname = %q, want trimmed", user.Nickname)
	}
	if user.Timezone != "Asia/Seoul" {
		t.Errorf("Timezone = %q, want default", user.Timezone)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter22" {
		t.Errorf("password not hashed")
	}

	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"duplicate email", RegisterInput{Email: "kim@example.com", Password: "hunter22", Nickname: "lee"}, ErrEmailTaken},
		{"duplicate nickname", RegisterInput{Email: "lee@example.com", Password: "hunter22", Nickname: "kim"}, ErrNicknameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	invalidInputs := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{"bad email", RegisterInput{Email: "nope", Password: "hunter22", Nickname: "park"}, "email"},
		{"forbidden nickname", RegisterInput{Email: "a@example.com", Password: "hunter22", Nickname: "System"}, "nickname"},
		{"short password", RegisterInput{Email: "a@example.com", Password: "123", Nickname: "park"}, "password"},
	}
	for _, tt := range invalidInputs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestAuthServiceLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestAuth(t)
	registered := mustRegister(t, svc, "kim@example.com", "kim")

	if _, _, err := svc.Login(ctx, "kim@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	token, user, err := svc.Login(ctx, "KIM@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != registered.ID || token == "" {
		t.Fatalf("unexpected login result: %v %q", user, token)
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != registered.ID {
		t.Errorf("authenticated %s, want %s", got.ID, registered.ID)
	}

	if _, err := svc.Authenticate(ctx, token+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
	other := NewAuthService(users, "other-secret", time.Hour, "UTC")
	if _, err := other.Authenticate(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for foreign secret, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	svc.now = time.Now

	delete(users.items, registered.ID)
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrUserGone) {
		t.Errorf("expected ErrUserGone, got %v", err)
	}
}

func TestAuthServiceUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)
	kim := mustRegister(t, svc, "kim@example.com", "kim")
	mustRegister(t, svc, "lee@example.com", "lee")

	taken := "lee"
	if _, err := svc.UpdateProfile(ctx, kim, ProfileInput{Nickname: &taken}); !errors.Is(err, ErrNicknameTaken) {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}

	badTZ := "Mars/Base"
	if _, err := svc.UpdateProfile(ctx, kim, ProfileInput{Timezone: &badTZ}); err == nil {
		t.Fatal("expected timezone error")
	}

	same := "kim"
	tz := "+09:00"
	updated, err := svc.UpdateProfile(ctx, kim, ProfileInput{Nickname: &same, Timezone: &tz})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Timezone != "+09:00" || updated.Nickname != "kim" {
		t.Errorf("unexpected profile: %+v", updated)
	}
}

func TestAuthServiceTelegramLink(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestAuth(t)
	kim := mustRegister(t, svc, "kim@example.com", "kim")
	lee := mustRegister(t, svc, "lee@example.com", "lee")

	code, expires, err := svc.IssueLinkCode(ctx, kim)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != linkCodeLength || expires.Before(time.Now()) {
		t.Fatalf("unexpected code %q expiring %v", code, expires)
	}

	if _, err := svc.LinkTelegram(ctx, "WRONGCDE", 100); !errors.Is(err, ErrLinkCodeInvalid) {
		t.Fatalf("expected ErrLinkCodeInvalid, got %v", err)
	}

	linked, err := svc.LinkTelegram(ctx, " "+code+" ", 100)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked.TelegramChatID != 100 || linked.LinkCode != "" {
		t.Fatalf("unexpected linked user: %+v", linked)
	}
	if _, err := svc.LinkTelegram(ctx, code, 100); !errors.Is(err, ErrLinkCodeInvalid) {
		t.Fatalf("expected code to be single-use, got %v", err)
	}

	byChat, err := svc.UserByChat(ctx, 100)
	if err != nil || byChat.ID != kim.ID {
		t.Fatalf("user by chat: %v %v", byChat, err)
	}

	// The same chat linked to another account moves over.
	leeCode, _, err := svc.IssueLinkCode(ctx, lee)
	if err != nil {
		t.Fatalf("issue lee: %v", err)
	}
	if _, err := svc.LinkTelegram(ctx, leeCode, 100); err != nil {
		t.Fatalf("link lee: %v", err)
	}
	kimNow, _ := users.FindByID(ctx, kim.ID)
	if kimNow.TelegramChatID != 0 {
		t.Errorf("previous owner still linked: %d", kimNow.TelegramChatID)
	}

	expiredCode, _, err := svc.IssueLinkCode(ctx, kimNow)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(linkCodeTTL + time.Minute) }
	if _, err := svc.LinkTelegram(ctx, expiredCode, 200); !errors.Is(err, ErrLinkCodeInvalid) {
		t.Fatalf("expected expired code to be rejected, got %v", err)
	}
	svc.now = time.Now

	leeNow, _ := users.FindByID(ctx, lee.ID)
	unlinked, err := svc.UnlinkTelegram(ctx, leeNow)
	if err != nil || unlinked.TelegramChatID != 0 {
		t.Fatalf("unlink: %+v %v", unlinked, err)
	}
	if _, err := svc.UserByChat(ctx, 100); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
}
