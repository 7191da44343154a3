package server

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
)

// TokenVerifier validates an identity provider access token and returns
// the stable subject id it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, err error)
}

// JWTVerifier verifies HS256 access tokens from the embedded-wallet
// identity provider. Verified claims are cached briefly so a burst of
// requests bearing the same token does not re-run signature checks.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	verified *gocache.Cache
}

// NewJWTVerifier creates a verifier for tokens signed with secret. If
// issuer is non-empty the iss claim must match.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{
		secret:   secret,
		issuer:   issuer,
		verified: gocache.New(time.Minute, 5*time.Minute),
	}
}

// Verify parses and validates the token, returning its subject.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	if sub, ok := v.verified.Get(token); ok {
		return sub.(string), nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}

	v.verified.Set(token, sub, gocache.DefaultExpiration)
	return sub, nil
}
