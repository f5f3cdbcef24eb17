package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NoteTitleMaxLen   = 100
	NoteContentMaxLen = 1000
)

type Note struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
