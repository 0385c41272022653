package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims issued by the identity service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 access tokens.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify validates the token signature and expiry and returns the caller
// identity from its subject and role claims.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" {
		return Identity{}, ErrUnauthorized
	}

	role := Role(strings.ToUpper(claims.Role))
	if role != RoleAdmin {
		role = RoleUser
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}
