package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Username string `json:"username"`
	Password string `json:"-"` // argon2id hash, never serialized
	IsActive bool   `json:"is_active"`
}
