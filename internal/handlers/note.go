package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/apperrors"
	"github.com/nkiryanov/gophernotes/internal/handlers/render"
	"github.com/nkiryanov/gophernotes/internal/handlers/userctx"
	"github.com/nkiryanov/gophernotes/internal/logger"
	"github.com/nkiryanov/gophernotes/internal/models"
)

type noteResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toNoteResponse(n models.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// renderNoteError maps note service errors to responses
func renderNoteError(w http.ResponseWriter, err error, l logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrNoteNotFound):
		render.ServiceError(w, "Note not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrNoteNotOwned):
		render.ServiceError(w, "Not authorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrMissingFields):
		render.ServiceError(w, "Please add a title and content", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrNoteTooLong):
		render.ServiceError(w, "Title or content is too long", http.StatusBadRequest)
	default:
		l.Error("Note operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Read user and note id from request. Writes error response if not ok
func noteTarget(w http.ResponseWriter, r *http.Request) (owner uuid.UUID, noteID uuid.UUID, ok bool) {
	owner, ok = userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
		return owner, noteID, false
	}

	noteID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Note not found", http.StatusNotFound)
		return owner, noteID, false
	}

	return owner, noteID, true
}

func handleListNotes(noteService noteService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		notes, err := noteService.List(r.Context(), owner)
		if err != nil {
			renderNoteError(w, err, l)
			return
		}

		res := make([]noteResponse, 0, len(notes))
		for _, n := range notes {
			res = append(res, toNoteResponse(n))
		}
		render.JSON(w, res)
	})
}

func handleCreateNote(noteService noteService, l logger.Logger) http.Handler {
	type request struct {
		Title   string `json:"title" validate:"required,notblank,max=100"`
		Content string `json:"content" validate:"required,max=1000"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		note, err := noteService.Create(r.Context(), owner, data.Title, data.Content)
		if err != nil {
			renderNoteError(w, err, l)
			return
		}

		render.JSONWithStatus(w, toNoteResponse(note), http.StatusCreated)
	})
}

func handleGetNote(noteService noteService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, noteID, ok := noteTarget(w, r)
		if !ok {
			return
		}

		note, err := noteService.Get(r.Context(), owner, noteID)
		if err != nil {
			renderNoteError(w, err, l)
			return
		}

		render.JSON(w, toNoteResponse(note))
	})
}

// Partial update: absent fields stay as they are
func handleUpdateNote(noteService noteService, l logger.Logger) http.Handler {
	type request struct {
		Title   *string `json:"title" validate:"omitempty,notblank,max=100"`
		Content *string `json:"content" validate:"omitempty,max=1000"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, noteID, ok := noteTarget(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		note, err := noteService.Update(r.Context(), owner, noteID, data.Title, data.Content)
		if err != nil {
			renderNoteError(w, err, l)
			return
		}

		render.JSON(w, toNoteResponse(note))
	})
}

func handleDeleteNote(noteService noteService, l logger.Logger) http.Handler {
	type response struct {
		ID uuid.UUID `json:"id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, noteID, ok := noteTarget(w, r)
		if !ok {
			return
		}

		err := noteService.Delete(r.Context(), owner, noteID)
		if err != nil {
			renderNoteError(w, err, l)
			return
		}

		render.JSON(w, response{ID: noteID})
	})
}
