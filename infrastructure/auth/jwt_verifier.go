package auth

import (
	"context"

	"flowcanvas-backend/application/ports"
	pkgauth "flowcanvas-backend/pkg/auth"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

// JWTVerifier implements ports.TokenVerifier with the local HS256
// validator. Used when the local credential gateway issues tokens.
type JWTVerifier struct {
	validator *pkgauth.JWTValidator
}

// NewJWTVerifier creates a verifier over the given validator
func NewJWTVerifier(validator *pkgauth.JWTValidator) *JWTVerifier {
	return &JWTVerifier{validator: validator}
}

var _ ports.TokenVerifier = (*JWTVerifier)(nil)

// Verify validates the token and extracts the identity it carries
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*ports.Identity, error) {
	claims, err := v.validator.ValidateToken(token)
	if err != nil {
		return nil, pkgerrors.NewUnauthorizedError("invalid or expired token")
	}
	return &ports.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}, nil
}
