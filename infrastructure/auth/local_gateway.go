// Package auth provides credential gateway implementations: a local
// bcrypt-and-JWT issuer for self-hosted deployments and a hosted
// Supabase verifier for managed ones.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/entities"
	pkgauth "flowcanvas-backend/pkg/auth"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

const minPasswordLength = 8

// LocalGateway implements ports.CredentialGateway against the user
// repository, hashing passwords with bcrypt and issuing HS256 tokens.
type LocalGateway struct {
	users       ports.UserRepository
	generator   *pkgauth.JWTGenerator
	broadcaster *pkgauth.IdentityBroadcaster
	logger      *zap.Logger
}

// NewLocalGateway creates a local credential gateway
func NewLocalGateway(
	users ports.UserRepository,
	generator *pkgauth.JWTGenerator,
	broadcaster *pkgauth.IdentityBroadcaster,
	logger *zap.Logger,
) *LocalGateway {
	return &LocalGateway{
		users:       users,
		generator:   generator,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

var _ ports.CredentialGateway = (*LocalGateway)(nil)

// SignIn verifies credentials and issues a session token. Unknown
// address and wrong password produce the same error so the endpoint
// does not leak which addresses are registered.
func (g *LocalGateway) SignIn(ctx context.Context, email, password string) (*ports.Session, error) {
	user, err := g.users.FindByEmail(ctx, email)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewUnauthorizedError("invalid email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, pkgerrors.NewUnauthorizedError("invalid email or password")
	}

	now := time.Now()
	if err := g.users.RecordLogin(ctx, user.ID, now); err != nil {
		// Sign-in still succeeds; the timestamp is bookkeeping
		g.logger.Warn("failed to record login time",
			zap.Error(err),
			zap.String("userID", user.ID),
		)
	}
	user.LastLogin = now

	session, err := g.issueSession(user)
	if err != nil {
		return nil, err
	}

	g.broadcaster.Publish(pkgauth.Authenticated(user.ID, user.Email))
	g.logger.Info("user signed in", zap.String("userID", user.ID))
	return session, nil
}

// SignUp registers a new identity and signs it in
func (g *LocalGateway) SignUp(ctx context.Context, email, password string, role entities.AccountRole) (*ports.Session, error) {
	if len(password) < minPasswordLength {
		return nil, pkgerrors.NewValidationError("password must be at least 8 characters")
	}

	normalized := entities.NormalizeEmail(email)
	if _, err := g.users.FindByEmail(ctx, normalized); err == nil {
		return nil, pkgerrors.NewConflictError("email address already in use")
	} else if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to hash password")
	}

	user, err := entities.NewUserProfile(uuid.New().String(), normalized, role, time.Now())
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	user.PasswordHash = string(hash)

	if err := g.users.Put(ctx, user); err != nil {
		return nil, err
	}

	session, err := g.issueSession(user)
	if err != nil {
		return nil, err
	}

	g.broadcaster.Publish(pkgauth.Authenticated(user.ID, user.Email))
	g.logger.Info("user signed up", zap.String("userID", user.ID))
	return session, nil
}

// SignOut invalidates the caller's session. Tokens are stateless, so
// the server-side effect is the identity-state broadcast; clients drop
// the token.
func (g *LocalGateway) SignOut(ctx context.Context, token string) error {
	g.broadcaster.Publish(pkgauth.Anonymous())
	return nil
}

// Subscribe registers an identity-state listener
func (g *LocalGateway) Subscribe(fn func(pkgauth.IdentityState)) func() {
	return g.broadcaster.Subscribe(fn)
}

func (g *LocalGateway) issueSession(user *entities.UserProfile) (*ports.Session, error) {
	token, err := g.generator.GenerateToken(user.ID, user.Email, []string{string(user.Role)})
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to issue token")
	}
	return &ports.Session{
		Token:     token,
		ExpiresIn: int64(g.generator.Expiry().Seconds()),
		User:      user,
	}, nil
}
