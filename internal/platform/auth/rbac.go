package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

// RequireUserType returns middleware that only admits identities of one of
// the given kinds. It must run after JWTMiddleware.
func RequireUserType(kinds ...party.Kind) echo.MiddlewareFunc {
	names := strings.Join(lo.Map(kinds, func(k party.Kind, _ int) string { return k.String() }), " or ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return apperr.HTTPError(apperr.Unauthenticated("No token provided"))
			}
			if !lo.Contains(kinds, id.Kind) {
				return apperr.HTTPError(apperr.Forbidden(fmt.Sprintf("required user type: %s", names)))
			}
			return next(c)
		}
	}
}
