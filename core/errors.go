package core

import (
	"errors"
	"fmt"
)

// Authentication Related Errors
var (
	ErrAccountExists       = errors.New("account with this email already exists")   // 409 Conflict
	ErrInvalidCredentials  = errors.New("invalid email or password")                // 401 Unauthorized
	ErrWrongCredentialMode = errors.New("account uses a different sign-in method")  // 401 Unauthorized
	ErrStorageUnavailable  = errors.New("storage unavailable")                      // 503
	ErrProviderUnavailable = errors.New("identity provider unavailable")            // 502
)

// Identity token errors
var (
	ErrInvalidToken  = errors.New("invalid identity token")          // 401
	ErrInvalidIssuer = errors.New("identity token has wrong issuer") // 401
	ErrTokenExpired  = errors.New("identity token expired")          // 401
	ErrKeyNotFound   = errors.New("signing key not found")           // 401
)

// Storage errors. Adapters return these for expected misses and conflicts;
// anything else is treated as an infrastructure failure.
var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrCacheNotFound   = errors.New("session not found in cache")
)

// Validation errors (client input)
var (
	ErrValidation          = errors.New("validation failed") // 400
	ErrNameRequired        = fmt.Errorf("%w: name is required", ErrValidation)
	ErrEmailRequired       = fmt.Errorf("%w: email is required", ErrValidation)
	ErrInvalidEmail        = fmt.Errorf("%w: invalid email format", ErrValidation)
	ErrPasswordRequired    = fmt.Errorf("%w: password is required", ErrValidation)
	ErrPasswordTooLong     = fmt.Errorf("%w: password is too long", ErrValidation)
	ErrTokenRequired       = fmt.Errorf("%w: token is required", ErrValidation)
	ErrUnsupportedProvider = fmt.Errorf("%w: unsupported identity provider", ErrValidation)
)

// Config errors (server-side configuration)
var (
	ErrDBAdapterRequired   = errors.New("database adapter is required")
	ErrHTTPAdapterRequired = errors.New("http adapter is required")
)

// WrongCredentialModeError is returned when a password login targets an
// account that was created through an identity provider.
//
// NOTE: the distinct error reveals that the email is registered. Callers
// depend on the message to steer users to the right button, so it stays.
type WrongCredentialModeError struct {
	Provider Provider
}

func (e *WrongCredentialModeError) Error() string {
	return fmt.Sprintf("this account uses %s sign-in; continue with %s instead", e.Provider.DisplayName(), e.Provider.DisplayName())
}

func (e *WrongCredentialModeError) Is(target error) bool {
	return target == ErrWrongCredentialMode
}

// Error kinds are the stable codes used on the wire.
const (
	KindValidation          = "validation_error"
	KindAccountExists       = "account_exists"
	KindInvalidCredentials  = "invalid_credentials"
	KindWrongCredentialMode = "wrong_credential_mode"
	KindInvalidToken        = "invalid_token"
	KindInvalidIssuer       = "invalid_issuer"
	KindTokenExpired        = "token_expired"
	KindKeyNotFound         = "key_not_found"
	KindProviderUnavailable = "provider_unavailable"
	KindStorageUnavailable  = "storage_unavailable"
	KindInternal            = "internal"
)

var kindOrder = []struct {
	err  error
	kind string
}{
	{ErrValidation, KindValidation},
	{ErrAccountExists, KindAccountExists},
	{ErrWrongCredentialMode, KindWrongCredentialMode},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrInvalidIssuer, KindInvalidIssuer},
	{ErrTokenExpired, KindTokenExpired},
	{ErrKeyNotFound, KindKeyNotFound},
	{ErrInvalidToken, KindInvalidToken},
	{ErrProviderUnavailable, KindProviderUnavailable},
	{ErrStorageUnavailable, KindStorageUnavailable},
}

// ErrorKind classifies err into one of the Kind* codes.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ErrorForKind is the inverse of ErrorKind, used by clients decoding wire errors.
func ErrorForKind(kind string) (error, bool) {
	for _, k := range kindOrder {
		if k.kind == kind {
			return k.err, true
		}
	}
	return nil, false
}
