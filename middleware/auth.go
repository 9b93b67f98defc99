package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"conference-webapp/auth"
	apperr "conference-webapp/errors"
	"conference-webapp/metrics"
)

// IdentityKey is the c.Locals key holding the request's auth.Principal.
const IdentityKey = "identity"

// Session authenticates the request from its Authorization header. Without
// the header the request continues as anonymous; a header that is present
// but unusable rejects the request.
func Session(tokens *auth.Tokens, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			c.Locals(IdentityKey, auth.Anonymous())
			return c.Next()
		}

		token, err := auth.BearerToken(header)
		if err != nil {
			return rejectSession(c, m, err)
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			return rejectSession(c, m, err)
		}

		c.Locals(IdentityKey, auth.PrincipalFromClaims(claims))
		return c.Next()
	}
}

func rejectSession(c *fiber.Ctx, m *metrics.Metrics, err error) error {
	var failure *auth.Failure
	if !errors.As(err, &failure) {
		return apperr.RaiseUnauthorizedError(c, err.Error())
	}
	m.AuthFailure(string(failure.Kind))

	if failure.Kind == auth.MalformedHeader {
		return apperr.RaiseError(c, fiber.StatusBadRequest, "Missing or malformed JWT", string(failure.Kind))
	}
	return apperr.RaiseError(c, fiber.StatusUnauthorized, "Invalid or expired JWT", string(failure.Kind))
}

// PrincipalFrom returns the principal Session stored on the request, or the
// anonymous principal when Session did not run.
func PrincipalFrom(c *fiber.Ctx) auth.Principal {
	if p, ok := c.Locals(IdentityKey).(auth.Principal); ok {
		return p
	}
	return auth.Anonymous()
}

// RequireRoles lets the request through only when the principal holds every
// role.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := auth.Authorize(PrincipalFrom(c), roles...); err != nil {
			return apperr.Respond(c, err)
		}
		return c.Next()
	}
}
