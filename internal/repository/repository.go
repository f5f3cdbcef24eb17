package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, name string, email string, hashedPassword string) (models.User, error)

	// Get user by it's id or email (case insensitive)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Overwrite stored refresh token hash unconditionally
	// If user not found must return apperrors.ErrUserNotFound
	SetRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string) error

	// Replace stored refresh token hash only if it still equals oldHash
	// Must return apperrors.ErrRefreshTokenRevoked if stored value differs (or user gone)
	SwapRefreshToken(ctx context.Context, userID uuid.UUID, oldHash string, newHash string) error

	// Clear stored refresh token hash. Clearing an already empty value is not an error
	UnsetRefreshToken(ctx context.Context, userID uuid.UUID) error
}

// Note repository interface
// Methods do not check ownership, that is a service concern
type NoteRepo interface {
	CreateNote(ctx context.Context, userID uuid.UUID, title string, content string) (models.Note, error)

	// If note not found must return apperrors.ErrNoteNotFound
	GetNote(ctx context.Context, noteID uuid.UUID) (models.Note, error)

	// Notes of the user, newest first
	ListNotes(ctx context.Context, userID uuid.UUID) ([]models.Note, error)

	// Update only non nil fields and bump updated_at
	// If note not found must return apperrors.ErrNoteNotFound
	UpdateNote(ctx context.Context, noteID uuid.UUID, title *string, content *string) (models.Note, error)

	// If note not found must return apperrors.ErrNoteNotFound
	DeleteNote(ctx context.Context, noteID uuid.UUID) error
}

type Storage interface {
	User() UserRepo
	Note() NoteRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
