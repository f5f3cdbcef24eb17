package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/handlers/middleware"
	"github.com/nkiryanov/gophernotes/internal/logger"
	"github.com/nkiryanov/gophernotes/internal/models"
)

const loginPage = "/login"

// Browser pages only signed in users may open
var protectedPages = []string{"/dashboard", "/profile", "/settings"}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Directory with static frontend. If empty pages are not served at all
	WebDir string
}

func NewRouter(
	cfg RouterConfig,
	authService authService,
	noteService noteService,
	metrics metricsCollector,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.Gate(authService, middleware.DenyUnauthorized)

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/signup", handleSignup(authService, metrics, logger))
	mux.Handle("POST /api/auth/login", handleLogin(authService, metrics, logger))
	mux.Handle("POST /api/auth/refresh", handleRefresh(authService, metrics, logger))
	mux.Handle("POST /api/auth/logout", handleLogout(authService, metrics))
	mux.Handle("GET /api/auth/me", withAuth(handleUserMe(authService, logger)))

	mux.Handle("GET /api/notes", withAuth(handleListNotes(noteService, logger)))
	mux.Handle("POST /api/notes", withAuth(handleCreateNote(noteService, logger)))
	mux.Handle("GET /api/notes/{id}", withAuth(handleGetNote(noteService, logger)))
	mux.Handle("PUT /api/notes/{id}", withAuth(handleUpdateNote(noteService, logger)))
	mux.Handle("DELETE /api/notes/{id}", withAuth(handleDeleteNote(noteService, logger)))

	mux.Handle("GET /metrics", metrics.Handler())

	pages := http.NotFoundHandler()
	if cfg.WebDir != "" {
		pages = http.FileServer(http.Dir(cfg.WebDir))
	}
	mux.Handle("/", middleware.PageGate(authService, loginPage, protectedPages...)(pages))

	return chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(metrics),
	)
}

type authService interface {
	// Create user, no session started
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Signup(ctx context.Context, name string, email string, password string) (models.User, error)

	// Has to return apperrors.ErrInvalidCredentials for unknown email or wrong password
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Rotate tokens
	// apperrors.ErrRefreshTokenInvalid if token is expired or not ours
	// apperrors.ErrRefreshTokenRevoked if token is not the current one
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Best effort, never fails
	Logout(ctx context.Context, refresh string)

	// Stateless check of the access token
	Authenticate(r *http.Request) (uuid.UUID, error)

	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Cookie transport of tokens
	SetTokenPair(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)
	GetRefreshString(r *http.Request) (string, error)
}

type noteService interface {
	List(ctx context.Context, owner uuid.UUID) ([]models.Note, error)
	Create(ctx context.Context, owner uuid.UUID, title string, content string) (models.Note, error)
	Get(ctx context.Context, owner uuid.UUID, noteID uuid.UUID) (models.Note, error)
	Update(ctx context.Context, owner uuid.UUID, noteID uuid.UUID, title *string, content *string) (models.Note, error)
	Delete(ctx context.Context, owner uuid.UUID, noteID uuid.UUID) error
}

type metricsCollector interface {
	ObserveRequest(method string, route string, status int, d time.Duration)
	SessionEvent(event string, outcome string)
	Handler() http.Handler
}
