package logger

import (
	"log/slog"
	"strings"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

func Provider(p string) slog.Attr {
	return slog.String("provider", p)
}

// Operation records the auth operation name under the key "op".
func Operation(op string) slog.Attr {
	return slog.String("op", op)
}

func Kind(kind string) slog.Attr {
	return slog.String("error_kind", kind)
}

// Email records only the domain part of an address under "email_domain".
// Full addresses stay out of logs.
func Email(email string) slog.Attr {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return slog.Attr{}
	}
	return slog.String("email_domain", email[at+1:])
}
