package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/appboost/bridge/cache"
	apperrors "github.com/appboost/bridge/errors"
)

const (
	profileIDContextKey = "bridge_profile_id"
	emailContextKey     = "bridge_email"
)

// SessionValidator checks a bearer token and returns the session it belongs
// to. *bridge.ExchangeService satisfies it.
type SessionValidator interface {
	Validate(ctx context.Context, accessToken string) (*cache.SessionEntry, error)
}

// RequireSession is an echo middleware that rejects requests without a valid
// bearer token. On success the profile id and email are stored on the echo
// context for handlers to read via ProfileID and Email.
func RequireSession(validator SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, apperrors.NewMissingToken())
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, apperrors.NewInvalidToken())
			}

			entry, err := validator.Validate(c.Request().Context(), parts[1])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, apperrors.NewInvalidToken())
			}

			c.Set(profileIDContextKey, entry.ProfileID)
			c.Set(emailContextKey, entry.Email)

			return next(c)
		}
	}
}

// ProfileID returns the authenticated profile id, or "" outside an
// authenticated route.
func ProfileID(c echo.Context) string {
	id, _ := c.Get(profileIDContextKey).(string)
	return id
}

// Email returns the authenticated session email, or "" outside an
// authenticated route.
func Email(c echo.Context) string {
	email, _ := c.Get(emailContextKey).(string)
	return email
}
