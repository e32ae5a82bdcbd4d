package jwt

import (
	stderrors "errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// Claims represents the access token claims issued by the identity service
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// IssuingUser returns sub, falling back to the user_id claim
func (c *Claims) IssuingUser() string {
	if c.RegisteredClaims.Subject != "" {
		return c.RegisteredClaims.Subject
	}
	return c.UserID
}

// Verifier checks access tokens. This service never issues tokens.
type Verifier struct {
	config *config.JWTConfig
}

// NewVerifier creates a new JWT verifier
func NewVerifier(cfg *config.JWTConfig) *Verifier {
	return &Verifier{config: cfg}
}

// ValidateAccessToken validates an access token and returns the claims
func (v *Verifier) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(v.config.Secret), nil
	}, opts...)

	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.IssuingUser() == "" {
		return nil, errors.TokenInvalid()
	}

	return claims, nil
}
