package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/apperrors"
	"github.com/nkiryanov/gophernotes/internal/logger"
	"github.com/nkiryanov/gophernotes/internal/models"
	"github.com/nkiryanov/gophernotes/internal/repository"
	"github.com/nkiryanov/gophernotes/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
)

// Interface to create or check user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Check user provided password against known hash
	// Must be protected against timing attacks
	Check(password string, hashedPassword string) bool
}

type TokenManager interface {
	IssuePair(userID uuid.UUID) (models.TokenPair, error)
	VerifyAccess(token string, opts ...tokenmanager.VerifyOption) (uuid.UUID, error)
	VerifyRefresh(token string, opts ...tokenmanager.VerifyOption) (uuid.UUID, error)
}

type Config struct {
	// Hasher to use during signup or login
	// BcryptHasher if not set
	Hasher PasswordHasher

	// Where access token is looked for: header first, cookie next
	AccessHeaderName string
	AccessAuthScheme string
	AccessCookieName string

	// Cookie the refresh token travels in
	RefreshCookieName string

	// Mark cookies Secure, i.e. https only. Expected to be on in production
	Secure bool
}

// Session manager: signup, login, refresh rotation and logout
type AuthService struct {
	tokens  TokenManager
	hasher  PasswordHasher
	storage repository.Storage
	logger  logger.Logger

	accessHeaderName  string
	accessAuthScheme  string
	accessCookieName  string
	refreshCookieName string
	secure            bool
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage, l logger.Logger) *AuthService {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthService{
		tokens:            tokens,
		hasher:            cfg.Hasher,
		storage:           storage,
		logger:            l,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		secure:            cfg.Secure,
	}
}

// Signup creates user. No tokens issued, user has to login afterwards
func (s *AuthService) Signup(ctx context.Context, name string, email string, password string) (models.User, error) {
	name, email = strings.TrimSpace(name), normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return models.User{}, apperrors.ErrMissingFields
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, name, email, hash)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Login checks credentials and starts new session, superseding the previous one
// Unknown email and wrong password are reported the same way
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, pair, apperrors.ErrMissingFields
	}

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, pair, err
	}

	if !s.hasher.Check(password, user.HashedPassword) {
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	err = s.storage.User().SetRefreshToken(ctx, user.ID, hashToken(pair.Refresh.Value))
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't store refresh token. Err: %w", err)
	}

	user.RefreshTokenHash = hashToken(pair.Refresh.Value)
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a new pair
// The presented token becomes unusable even if it has not expired
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	if refresh == "" {
		return models.TokenPair{}, apperrors.ErrRefreshTokenMissing
	}

	userID, err := s.tokens.VerifyRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenInvalid, err)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.ErrRefreshTokenRevoked
	case err != nil:
		return models.TokenPair{}, err
	}

	presented := hashToken(refresh)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshTokenHash)) != 1 {
		return models.TokenPair{}, apperrors.ErrRefreshTokenRevoked
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	// Lost swap means a concurrent refresh (or logout) got there first
	err = s.storage.User().SwapRefreshToken(ctx, user.ID, presented, hashToken(pair.Refresh.Value))
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout is best effort and never fails: any problem is logged and swallowed
func (s *AuthService) Logout(ctx context.Context, refresh string) {
	if refresh == "" {
		return
	}

	userID, err := s.tokens.VerifyRefresh(refresh, tokenmanager.IgnoreExpiration())
	if err != nil {
		s.logger.Warn("logout with undecodable refresh token", "error", err)
		return
	}

	err = s.storage.User().UnsetRefreshToken(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to unset refresh token on logout", "user_id", userID, "error", err)
	}
}

// Authenticate verifies request access token and returns user id
// Stateless: neither user existence nor session state is checked
func (s *AuthService) Authenticate(r *http.Request) (uuid.UUID, error) {
	token := s.accessFromRequest(r)
	if token == "" {
		return uuid.Nil, fmt.Errorf("no access token: %w", apperrors.ErrTokenInvalid)
	}

	return s.tokens.VerifyAccess(token)
}

func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Set auth tokens (access, refresh) to response cookies
func (s *AuthService) SetTokenPair(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.accessCookieName, pair.Access))
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh))
}

// Expire both auth cookies on client
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// Get refresh token from request
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrRefreshTokenMissing
	}

	return cookie.Value, nil
}

func (s *AuthService) cookie(name string, token models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		MaxAge:   int(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Header wins over cookie. Malformed header falls back to cookie
func (s *AuthService) accessFromRequest(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(s.accessHeaderName), " ")
	if ok && strings.EqualFold(scheme, s.accessAuthScheme) && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}

	if cookie, err := r.Cookie(s.accessCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Refresh tokens are stored as sha256 hex digest, never as is
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
