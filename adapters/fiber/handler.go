package fiber

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/logger"
)

var errInvalidBody = errors.New("invalid request body")

func (a *Adapter) handleSignUp(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.SignUpInput
		if err := c.Bind().Body(&input); err != nil {
			return a.writeError(c, errInvalidBody)
		}

		result, err := h.SignUp(c.Context(), input)
		if err != nil {
			return a.writeError(c, err)
		}

		return c.Status(http.StatusCreated).JSON(result)
	}
}

func (a *Adapter) handleSignIn(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.SignInInput
		if err := c.Bind().Body(&input); err != nil {
			return a.writeError(c, errInvalidBody)
		}

		result, err := h.SignIn(c.Context(), input)
		if err != nil {
			return a.writeError(c, err)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

func (a *Adapter) handleSignInWithGoogle(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.GoogleSignInInput
		if err := c.Bind().Body(&input); err != nil {
			return a.writeError(c, errInvalidBody)
		}

		result, err := h.SignInWithGoogle(c.Context(), input.IDToken)
		if err != nil {
			return a.writeError(c, err)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

func (a *Adapter) handleSignInWithApple(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.AppleSignInInput
		if err := c.Bind().Body(&input); err != nil {
			return a.writeError(c, errInvalidBody)
		}

		result, err := h.SignInWithApple(c.Context(), input)
		if err != nil {
			return a.writeError(c, err)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

// handleAppleCallback completes web sign-in from Apple's form_post callback.
// It answers with a redirect, never JSON: the caller is a browser.
func (a *Adapter) handleAppleCallback(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		form := core.AppleCallbackForm{
			IDToken: c.FormValue("id_token"),
			User:    c.FormValue("user"),
		}
		input := form.Input()
		if input.IdentityToken == "" {
			return redirect(c, a.appleFailureURL, url.Values{"error": {"no_apple_token"}})
		}

		result, err := h.SignInWithApple(c.Context(), input)
		if err != nil {
			a.logFailure(c, mapErrorToStatus(err), err)
			return redirect(c, a.appleFailureURL, url.Values{"error": {core.ErrorKind(err)}})
		}

		return redirect(c, a.appleSuccessURL, url.Values{
			"token":    {result.Token},
			"provider": {core.ProviderApple.String()},
		})
	}
}

func redirect(c fiber.Ctx, target string, query url.Values) error {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return c.Redirect().Status(http.StatusSeeOther).To(target + sep + query.Encode())
}

// handleMe answers null rather than 401 when there is no live session.
func (a *Adapter) handleMe(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		profile, err := h.Me(c.Context(), extractToken(c))
		if err != nil {
			return a.writeError(c, err)
		}
		if profile == nil {
			return c.Status(http.StatusOK).JSON(nil)
		}
		return c.Status(http.StatusOK).JSON(profile)
	}
}

func (a *Adapter) handleSignOut(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := h.SignOut(c.Context(), extractToken(c)); err != nil {
			return a.writeError(c, err)
		}

		c.ClearCookie(core.TokenCookieName)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"success": true,
		})
	}
}

// extractToken extracts the authentication token from the request.
// Checks Authorization header (Bearer token) first, then falls back to cookie.
func extractToken(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}

	return c.Cookies(core.TokenCookieName)
}

// writeError answers with the error kind. Server-side failures carry only
// the status text; their detail goes to the log.
func (a *Adapter) writeError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	a.logFailure(c, status, err)

	kind := core.ErrorKind(err)
	if errors.Is(err, errInvalidBody) {
		kind = core.KindValidation
	}
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	return c.Status(status).JSON(core.ErrorResponse{
		Error: message,
		Code:  kind,
	})
}

func (a *Adapter) logFailure(c fiber.Ctx, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	a.logger.ErrorContext(c.Context(), "request failed",
		slog.String("path", c.Path()),
		slog.Int("status", status),
		logger.Error(err))
}

// mapErrorToStatus maps domain errors to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrAccountExists):
		return http.StatusConflict

	case errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrWrongCredentialMode),
		errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrInvalidIssuer),
		errors.Is(err, core.ErrTokenExpired),
		errors.Is(err, core.ErrKeyNotFound):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrProviderUnavailable):
		return http.StatusBadGateway

	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
