package note

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/apperrors"
	"github.com/nkiryanov/gophernotes/internal/models"
	"github.com/nkiryanov/gophernotes/internal/repository"
)

// Notes of a single owner. Every method is scoped by the caller's user id
type NoteService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *NoteService {
	return &NoteService{storage: storage}
}

func (s *NoteService) List(ctx context.Context, owner uuid.UUID) ([]models.Note, error) {
	return s.storage.Note().ListNotes(ctx, owner)
}

func (s *NoteService) Create(ctx context.Context, owner uuid.UUID, title string, content string) (models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" || content == "" {
		return models.Note{}, apperrors.ErrMissingFields
	}
	if err := checkLength(&title, &content); err != nil {
		return models.Note{}, err
	}

	return s.storage.Note().CreateNote(ctx, owner, title, content)
}

func (s *NoteService) Get(ctx context.Context, owner uuid.UUID, noteID uuid.UUID) (models.Note, error) {
	note, err := s.storage.Note().GetNote(ctx, noteID)
	if err != nil {
		return note, err
	}

	if note.UserID != owner {
		return models.Note{}, apperrors.ErrNoteNotOwned
	}

	return note, nil
}

// Update applies only non nil fields. Ownership check and write share one transaction
func (s *NoteService) Update(ctx context.Context, owner uuid.UUID, noteID uuid.UUID, title *string, content *string) (models.Note, error) {
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return models.Note{}, apperrors.ErrMissingFields
		}
		title = &trimmed
	}
	if content != nil && *content == "" {
		return models.Note{}, apperrors.ErrMissingFields
	}
	if err := checkLength(title, content); err != nil {
		return models.Note{}, err
	}

	var note models.Note
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		_, err := NewService(tx).Get(ctx, owner, noteID)
		if err != nil {
			return err
		}

		note, err = tx.Note().UpdateNote(ctx, noteID, title, content)
		return err
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("can't update note. Err: %w", err)
	}

	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, owner uuid.UUID, noteID uuid.UUID) error {
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		_, err := NewService(tx).Get(ctx, owner, noteID)
		if err != nil {
			return err
		}

		return tx.Note().DeleteNote(ctx, noteID)
	})
	if err != nil {
		return fmt.Errorf("can't delete note. Err: %w", err)
	}

	return nil
}

func checkLength(title *string, content *string) error {
	if title != nil && utf8.RuneCountInString(*title) > models.NoteTitleMaxLen {
		return apperrors.ErrNoteTooLong
	}
	if content != nil && utf8.RuneCountInString(*content) > models.NoteContentMaxLen {
		return apperrors.ErrNoteTooLong
	}
	return nil
}
