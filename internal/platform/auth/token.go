package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
)

// Claims is the credential payload: account id, lower-case role and the
// capitalized user type. Older tokens may omit userType.
type Claims struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	UserType string `json:"userType,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated party behind a request or connection.
type Identity struct {
	ID   uuid.UUID
	Role string
	Kind party.Kind
}

// Signer issues and validates HS256 tokens.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, issuer string, ttl time.Duration) *Signer {
	return &Signer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue mints a token for the given account.
func (s *Signer) Issue(id uuid.UUID, kind party.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("cannot issue token for kind %v", kind)
	}
	now := s.now()
	claims := Claims{
		ID:       id.String(),
		Role:     kind.Role(),
		UserType: kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates tokenStr and resolves the identity it carries. Failures are
// authentication errors with the message a client should see.
func (s *Signer) Parse(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, apperr.Unauthenticated("No token provided")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Unauthenticated("Token expired")
		}
		return Identity{}, apperr.Unauthenticated("Invalid token")
	}
	if !token.Valid {
		return Identity{}, apperr.Unauthenticated("Invalid token")
	}
	return claims.Identity()
}

// Identity resolves the account behind the claims. The id comes from the
// "id" claim, falling back to "sub"; the kind comes from userType, falling
// back to the role.
func (c *Claims) Identity() (Identity, error) {
	raw := c.ID
	if raw == "" {
		raw = c.Subject
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Identity{}, apperr.Unauthenticated("Invalid token")
	}

	kind, err := party.Parse(c.UserType)
	if err != nil {
		kind, err = party.Parse(c.Role)
		if err != nil {
			return Identity{}, apperr.Unauthenticated("Invalid token")
		}
	}

	role := c.Role
	if role == "" {
		role = kind.Role()
	}
	return Identity{ID: id, Role: role, Kind: kind}, nil
}
