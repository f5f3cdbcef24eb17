package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token pair issued on login and on every refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
