package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Name           string
	Email          string
	HashedPassword string

	// SHA-256 digest of the only live refresh token; empty when no session is active
	RefreshTokenHash string
}
