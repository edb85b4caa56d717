package model

import (
	"time"

	"github.com/google/uuid"

	"story-ai-billing/internal/domain"
)

// User holds the credit balance metered by generated chapters.
// Credits are mutated only by settlement (increment, tied 1:1 to a
// Payment's credits_added transition) and by chapter generation (decrement).
type User struct {
	ID           string
	Email        string
	Language     string // "en" | "ru" | "kz"
	Credits      int64
	RegisteredAt time.Time
	LastActiveAt time.Time
}

func NewUser(id, email, language string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if language == "" {
		language = "en"
	}
	now := time.Now()
	return &User{ID: id, Email: email, Language: language, RegisteredAt: now, LastActiveAt: now}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
