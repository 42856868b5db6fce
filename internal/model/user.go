package model

import "time"

// User is an account owning a todo list. Email is the login identifier,
// Nickname the unique display name.
type User struct {
	ID                string     `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	Email             string     `json:"email" bson:"email" gorm:"uniqueIndex;size:254;not null"`
	Nickname          string     `json:"nickname" bson:"nickname" gorm:"uniqueIndex;size:32;not null"`
	PasswordHash      string     `json:"-" bson:"passwordHash" gorm:"not null"`
	Timezone          string     `json:"timezone" bson:"timezone" gorm:"size:64"`
	TelegramChatID    int64      `json:"telegramChatId,omitempty" bson:"telegramChatId,omitempty" gorm:"index"`
	LinkCode          string     `json:"-" bson:"linkCode,omitempty" gorm:"index;size:16"`
	LinkCodeExpiresAt *time.Time `json:"-" bson:"linkCodeExpiresAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// TelegramLinked reports whether the user has connected a Telegram chat.
func (u User) TelegramLinked() bool {
	return u.TelegramChatID != 0
}
