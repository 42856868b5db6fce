package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"todo-planner/internal/logger"
	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

const (
	linkCodeLength   = 8
	linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	linkCodeTTL      = 15 * time.Minute
)

// RegisterInput represents data required to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Nickname string
}

// ProfileInput holds optional profile changes; nil fields stay untouched.
type ProfileInput struct {
	Nickname *string
	Timezone *string
}

// AuthService registers users, issues access tokens and links Telegram chats.
type AuthService struct {
	users     UserStore
	secret    []byte
	ttl       time.Duration
	defaultTZ string
	hashCost  int
	now       func() time.Time
}

func NewAuthService(users UserStore, secret string, ttl time.Duration, defaultTZ string) *AuthService {
	return &AuthService{
		users:     users,
		secret:    []byte(secret),
		ttl:       ttl,
		defaultTZ: defaultTZ,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	email := normalizeEmail(input.Email)
	nickname := strings.TrimSpace(input.Nickname)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	taken, err := s.users.NicknameTaken(ctx, nickname, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNicknameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: string(hash),
		Timezone:     s.defaultTZ,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	logger.Info("user registered", "user", user.ID)
	return user, nil
}

// Login checks credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) issueToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate resolves the user behind a bearer token.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	case claims.Subject == "":
		return nil, ErrTokenInvalid
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserGone
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, user *model.User, input ProfileInput) (*model.User, error) {
	updated := *user
	if input.Nickname != nil {
		nickname := strings.TrimSpace(*input.Nickname)
		if err := validateNickname(nickname); err != nil {
			return nil, err
		}
		taken, err := s.users.NicknameTaken(ctx, nickname, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrNicknameTaken
		}
		updated.Nickname = nickname
	}
	if input.Timezone != nil {
		tz := strings.TrimSpace(*input.Timezone)
		if _, err := LocationFromTZ(tz); err != nil {
			return nil, err
		}
		updated.Timezone = tz
	}
	if err := s.users.Update(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrNicknameTaken
		}
		return nil, err
	}
	return &updated, nil
}

// IssueLinkCode creates a short-lived code the user sends to the bot.
func (s *AuthService) IssueLinkCode(ctx context.Context, user *model.User) (string, time.Time, error) {
	code, err := newLinkCode()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := s.now().Add(linkCodeTTL).UTC()
	updated := *user
	updated.LinkCode = code
	updated.LinkCodeExpiresAt = &expires
	if err := s.users.Update(ctx, &updated); err != nil {
		return "", time.Time{}, err
	}
	return code, expires, nil
}

// LinkTelegram attaches chatID to the account that issued code. A chat can
// belong to one account only, so a previous owner is unlinked.
func (s *AuthService) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != linkCodeLength {
		return nil, ErrLinkCodeInvalid
	}
	user, err := s.users.FindByLinkCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkCodeInvalid
		}
		return nil, err
	}
	if user.LinkCodeExpiresAt == nil || s.now().After(*user.LinkCodeExpiresAt) {
		return nil, ErrLinkCodeInvalid
	}

	previous, err := s.users.FindByTelegramChat(ctx, chatID)
	switch {
	case err == nil && previous.ID != user.ID:
		previous.TelegramChatID = 0
		if err := s.users.Update(ctx, previous); err != nil {
			return nil, fmt.Errorf("unlink previous owner: %w", err)
		}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	user.TelegramChatID = chatID
	user.LinkCode = ""
	user.LinkCodeExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("telegram linked", "user", user.ID)
	return user, nil
}

func (s *AuthService) UnlinkTelegram(ctx context.Context, user *model.User) (*model.User, error) {
	updated := *user
	updated.TelegramChatID = 0
	if err := s.users.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UserByChat returns the account linked to a Telegram chat.
func (s *AuthService) UserByChat(ctx context.Context, chatID int64) (*model.User, error) {
	if chatID == 0 {
		return nil, ErrNotLinked
	}
	user, err := s.users.FindByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotLinked
		}
		return nil, err
	}
	return user, nil
}

func newLinkCode() (string, error) {
	buf := make([]byte, linkCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate link code: %w", err)
	}
	for i, b := range buf {
		buf[i] = linkCodeAlphabet[int(b)%len(linkCodeAlphabet)]
	}
	return string(buf), nil
}
