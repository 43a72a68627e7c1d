package ports

import (
	"context"

	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/pkg/auth"
)

// Identity is the verified caller of a request
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

// Session is the result of a successful sign-in or sign-up
type Session struct {
	Token     string
	ExpiresIn int64 // seconds
	User      *entities.UserProfile
}

// CredentialGateway is the port to the identity provider: email and
// password in, opaque authenticated identity out. Implementations
// surface InvalidCredentials, EmailInUse and WeakPassword as typed
// application errors.
type CredentialGateway interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, role entities.AccountRole) (*Session, error)
	SignOut(ctx context.Context, token string) error

	// Subscribe registers an identity-state listener and returns its
	// unsubscribe handle. The listener fires immediately with the
	// current state and again on every change.
	Subscribe(fn func(auth.IdentityState)) func()
}

// TokenVerifier checks a bearer token and returns the identity it
// proves. Backed either by the local JWT issuer or by the hosted
// credential gateway.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
