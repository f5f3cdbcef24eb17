package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/apperrors"
	"github.com/nkiryanov/gophernotes/internal/handlers/render"
	"github.com/nkiryanov/gophernotes/internal/handlers/userctx"
	"github.com/nkiryanov/gophernotes/internal/logger"
	"github.com/nkiryanov/gophernotes/internal/metrics"
)

const outcomeOK = "ok"

type userResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func handleSignup(authService authService, m metricsCollector, l logger.Logger) http.Handler {
	type request struct {
		Name     string `json:"name" validate:"required,notblank,max=100"`
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,min=6"`
	}
	type response struct {
		userResponse
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := authService.Signup(r.Context(), data.Name, data.Email, data.Password)

		switch {
		case err == nil:
			m.SessionEvent(metrics.EventSignup, outcomeOK)
			render.JSONWithStatus(w, response{
				userResponse: userResponse{ID: user.ID, Name: user.Name, Email: user.Email},
				Message:      "User registered successfully",
			}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			m.SessionEvent(metrics.EventSignup, "user_exists")
			render.ServiceError(w, "User already exists", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrMissingFields):
			render.ServiceError(w, "Please fill all fields", http.StatusBadRequest)
		default:
			l.Error("Failed to signup user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(authService authService, m metricsCollector, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		userResponse
		Message     string `json:"message"`
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Login(r.Context(), data.Email, data.Password)

		switch {
		case err == nil:
			m.SessionEvent(metrics.EventLogin, outcomeOK)
			authService.SetTokenPair(w, pair)
			render.JSON(w, response{
				userResponse: userResponse{ID: user.ID, Name: user.Name, Email: user.Email},
				Message:      "Logged in successfully",
				AccessToken:  pair.Access.Value,
			})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			m.SessionEvent(metrics.EventLogin, "invalid_credentials")
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrMissingFields):
			render.ServiceError(w, "Please provide an email and password", http.StatusBadRequest)
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRefresh(authService authService, m metricsCollector, l logger.Logger) http.Handler {
	type response struct {
		Message     string `json:"message"`
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			m.SessionEvent(metrics.EventRefresh, "missing")
			render.ServiceError(w, "No refresh token provided", http.StatusUnauthorized)
			return
		}

		pair, err := authService.Refresh(r.Context(), refresh)

		switch {
		case err == nil:
			m.SessionEvent(metrics.EventRefresh, outcomeOK)
			authService.SetTokenPair(w, pair)
			render.JSON(w, response{Message: "Tokens refreshed successfully", AccessToken: pair.Access.Value})
		case errors.Is(err, apperrors.ErrRefreshTokenMissing):
			m.SessionEvent(metrics.EventRefresh, "missing")
			render.ServiceError(w, "No refresh token provided", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshTokenInvalid):
			m.SessionEvent(metrics.EventRefresh, "invalid")
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrRefreshTokenRevoked):
			m.SessionEvent(metrics.EventRefresh, "revoked")
			l.Warn("Revoked refresh token presented", "ip", r.RemoteAddr)
			render.ServiceError(w, "Refresh token is invalid or has been revoked", http.StatusForbidden)
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Logout always succeeds and always clears client cookies
func handleLogout(authService authService, m metricsCollector) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, _ := authService.GetRefreshString(r)
		authService.Logout(r.Context(), refresh)

		m.SessionEvent(metrics.EventLogout, outcomeOK)
		authService.ClearTokens(w)
		render.JSON(w, response{Message: "Logged out successfully"})
	})
}

func handleUserMe(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		user, err := authService.GetUser(r.Context(), userID)

		switch {
		case err == nil:
			render.JSON(w, userResponse{ID: user.ID, Name: user.Name, Email: user.Email})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		default:
			l.Error("Failed to get user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
