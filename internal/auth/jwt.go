package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Role Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens issued by the identity service.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(tokenStr string) (Caller, error) {
	if len(v.secret) == 0 {
		return Caller{}, fmt.Errorf("%w: token verification not configured", ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Caller{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	if claims.Subject == "" {
		return Caller{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	role := claims.Role
	switch role {
	case "":
		role = RoleUser
	case RoleUser, RoleAdmin:
	default:
		return Caller{}, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, role)
	}

	return Caller{ID: claims.Subject, Role: role}, nil
}

// VerifyBearer accepts the raw Authorization header value.
func (v *Verifier) VerifyBearer(header string) (Caller, error) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Caller{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	return v.Verify(strings.TrimSpace(header[len(prefix):]))
}

// Issue signs a token for c. Used by local tooling and tests; production
// tokens come from the identity service.
func (v *Verifier) Issue(c Caller, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := &Claims{
		Role: c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
