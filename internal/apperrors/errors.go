package apperrors

import (
	"errors"
)

var (
	ErrMissingFields      = errors.New("required fields are missing")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")

	ErrRefreshTokenMissing = errors.New("refresh token not provided")
	ErrRefreshTokenInvalid = errors.New("refresh token is invalid or expired")
	ErrRefreshTokenRevoked = errors.New("refresh token is invalid or has been revoked")

	ErrNoteNotFound = errors.New("note not found")
	ErrNoteNotOwned = errors.New("note belongs to another user")
	ErrNoteTooLong  = errors.New("note title or content is too long")
)
