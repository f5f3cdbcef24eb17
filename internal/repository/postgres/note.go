package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/gophernotes/internal/apperrors"
	"github.com/nkiryanov/gophernotes/internal/models"
)

type NoteRepo struct {
	DB DBTX
}

const createNote = `-- name: CreateNote
INSERT INTO notes (id, user_id, title, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id, user_id, title, content, created_at, updated_at
`

func (r *NoteRepo) CreateNote(ctx context.Context, userID uuid.UUID, title string, content string) (models.Note, error) {
	rows, _ := r.DB.Query(ctx, createNote, uuid.New(), userID, title, content, time.Now())
	note, err := pgx.CollectOneRow(rows, rowToNote)
	if err != nil {
		return note, fmt.Errorf("db error: %w", err)
	}

	return note, nil
}

const getNote = `-- name: GetNote
SELECT id, user_id, title, content, created_at, updated_at FROM notes
WHERE id = $1
`

func (r *NoteRepo) GetNote(ctx context.Context, noteID uuid.UUID) (models.Note, error) {
	rows, _ := r.DB.Query(ctx, getNote, noteID)
	return collectNote(rows)
}

const listNotes = `-- name: ListNotes
SELECT id, user_id, title, content, created_at, updated_at FROM notes
WHERE user_id = $1
ORDER BY created_at DESC, id
`

func (r *NoteRepo) ListNotes(ctx context.Context, userID uuid.UUID) ([]models.Note, error) {
	rows, _ := r.DB.Query(ctx, listNotes, userID)
	notes, err := pgx.CollectRows(rows, rowToNote)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return notes, nil
}

const updateNote = `-- name: UpdateNote
UPDATE notes SET
	title = COALESCE($2, title),
	content = COALESCE($3, content),
	updated_at = $4
WHERE id = $1
RETURNING id, user_id, title, content, created_at, updated_at
`

func (r *NoteRepo) UpdateNote(ctx context.Context, noteID uuid.UUID, title *string, content *string) (models.Note, error) {
	rows, _ := r.DB.Query(ctx, updateNote, noteID, title, content, time.Now())
	return collectNote(rows)
}

const deleteNote = `-- name: DeleteNote
DELETE FROM notes
WHERE id = $1
`

func (r *NoteRepo) DeleteNote(ctx context.Context, noteID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteNote, noteID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrNoteNotFound
	default:
		return nil
	}
}

func collectNote(rows pgx.Rows) (models.Note, error) {
	note, err := pgx.CollectOneRow(rows, rowToNote)

	switch {
	case err == nil:
		return note, nil
	case errors.Is(err, pgx.ErrNoRows):
		return note, apperrors.ErrNoteNotFound
	default:
		return note, fmt.Errorf("db error: %w", err)
	}
}

func rowToNote(row pgx.CollectableRow) (models.Note, error) {
	var n models.Note
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}
