package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/lborres/tether/core"
)

// UserKey is the Locals key RequireSession stores the *core.Profile under.
const UserKey = "user"

// RequireSession guards application routes: it resolves the request token
// and stores the profile in Locals, or answers 401.
func RequireSession(h core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "missing token",
				Code:  core.KindInvalidCredentials,
			})
		}

		profile, err := h.Me(c.Context(), token)
		if err != nil {
			return c.Status(mapErrorToStatus(err)).JSON(core.ErrorResponse{
				Error: err.Error(),
				Code:  core.ErrorKind(err),
			})
		}
		if profile == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "session not found",
				Code:  core.KindInvalidCredentials,
			})
		}

		c.Locals(UserKey, profile)
		return c.Next()
	}
}

// CurrentUser returns the profile stored by RequireSession.
func CurrentUser(c fiber.Ctx) *core.Profile {
	profile, _ := c.Locals(UserKey).(*core.Profile)
	return profile
}
