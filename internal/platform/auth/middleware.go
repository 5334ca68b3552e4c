package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"

	// identityEchoKey mirrors the identity on the echo context for
	// middleware that only sees echo.Context (rate limiting, logging).
	identityEchoKey = "auth_identity"
)

// TokenVerifier is satisfied by *Signer.
type TokenVerifier interface {
	Parse(tokenStr string) (Identity, error)
}

// JWTMiddleware rejects requests without a valid bearer token and stores the
// resolved Identity on the request context.
func JWTMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				return apperr.HTTPError(err)
			}

			id, err := verifier.Parse(tokenStr)
			if err != nil {
				return apperr.HTTPError(err)
			}

			c.Set(identityEchoKey, id)
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// TokenFromRequest extracts a credential from a websocket handshake: the
// "token" query parameter first, then the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	tok, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return tok
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthenticated("No token provided")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.Unauthenticated("Invalid token")
	}
	return strings.TrimSpace(parts[1]), nil
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// IdentityFromEcho returns the identity set by JWTMiddleware, if any.
func IdentityFromEcho(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityEchoKey).(Identity)
	return id, ok
}
