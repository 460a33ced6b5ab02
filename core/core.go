package core

import "time"

const (
	// SessionMaxAge is how long an issued session stays valid. It is fixed.
	SessionMaxAge = 30 * 24 * time.Hour

	// TokenCookieName is the cookie consulted when no bearer token is sent,
	// and the key client token stores persist under.
	TokenCookieName = "auth_token"

	DefaultBasePath = "/api/auth"
)
