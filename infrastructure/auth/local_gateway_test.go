package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/infrastructure/persistence/memory"
	pkgauth "flowcanvas-backend/pkg/auth"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

func newTestGateway(t *testing.T) (*LocalGateway, *memory.UserStore, *pkgauth.IdentityBroadcaster) {
	t.Helper()
	users := memory.NewUserStore()
	generator, err := pkgauth.NewJWTGenerator(pkgauth.JWTGeneratorConfig{
		SecretKey:  "test-secret",
		Issuer:     "flowcanvas-backend",
		Audience:   []string{"flowcanvas-api"},
		ExpiryTime: time.Hour,
	})
	require.NoError(t, err)
	broadcaster := pkgauth.NewIdentityBroadcaster()
	return NewLocalGateway(users, generator, broadcaster, zap.NewNop()), users, broadcaster
}

func TestLocalGateway_SignUpAndSignIn(t *testing.T) {
	// Arrange
	ctx := context.Background()
	gateway, _, _ := newTestGateway(t)

	// Act
	created, err := gateway.SignUp(ctx, "User@Example.com", "correct-horse", entities.AccountRoleEditor)
	require.NoError(t, err)

	session, err := gateway.SignIn(ctx, "user@example.com", "correct-horse")

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, created.User.ID, session.User.ID)
	assert.Equal(t, "user@example.com", session.User.Email)
	assert.False(t, session.User.LastLogin.IsZero())
}

func TestLocalGateway_SignIn_WrongPassword(t *testing.T) {
	ctx := context.Background()
	gateway, _, _ := newTestGateway(t)

	_, err := gateway.SignUp(ctx, "user@example.com", "correct-horse", entities.AccountRoleEditor)
	require.NoError(t, err)

	_, err = gateway.SignIn(ctx, "user@example.com", "wrong-horse")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))

	// Unknown address gets the same error shape
	_, err = gateway.SignIn(ctx, "nobody@example.com", "whatever-pw")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
}

func TestLocalGateway_SignUp_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	gateway, _, _ := newTestGateway(t)

	_, err := gateway.SignUp(ctx, "user@example.com", "correct-horse", entities.AccountRoleEditor)
	require.NoError(t, err)

	_, err = gateway.SignUp(ctx, "USER@example.com", "other-password", entities.AccountRoleEditor)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
}

func TestLocalGateway_SignUp_WeakPassword(t *testing.T) {
	ctx := context.Background()
	gateway, _, _ := newTestGateway(t)

	_, err := gateway.SignUp(ctx, "user@example.com", "short", entities.AccountRoleEditor)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestLocalGateway_PasswordHashNotPlaintext(t *testing.T) {
	ctx := context.Background()
	gateway, users, _ := newTestGateway(t)

	session, err := gateway.SignUp(ctx, "user@example.com", "correct-horse", entities.AccountRoleEditor)
	require.NoError(t, err)

	stored, err := users.GetByID(ctx, session.User.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "correct-horse", stored.PasswordHash)
}

func TestLocalGateway_IdentityBroadcast(t *testing.T) {
	// Arrange
	ctx := context.Background()
	gateway, _, _ := newTestGateway(t)

	var states []pkgauth.IdentityState
	unsubscribe := gateway.Subscribe(func(s pkgauth.IdentityState) {
		states = append(states, s)
	})

	// The listener fires immediately with the current (anonymous) state
	require.Len(t, states, 1)
	assert.False(t, states[0].Authenticated)

	// Act
	session, err := gateway.SignUp(ctx, "user@example.com", "correct-horse", entities.AccountRoleEditor)
	require.NoError(t, err)
	require.NoError(t, gateway.SignOut(ctx, session.Token))

	// Assert: authenticated then anonymous
	require.Len(t, states, 3)
	assert.True(t, states[1].Authenticated)
	assert.Equal(t, session.User.ID, states[1].UserID)
	assert.False(t, states[2].Authenticated)

	// After unsubscribing, no further deliveries
	unsubscribe()
	_, err = gateway.SignIn(ctx, "user@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Len(t, states, 3)
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	gateway, _, _ := newTestGateway(t)

	session, err := gateway.SignUp(ctx, "user@example.com", "correct-horse", entities.AccountRoleEditor)
	require.NoError(t, err)

	validator, err := pkgauth.NewJWTValidator(pkgauth.JWTConfig{
		SecretKey: "test-secret",
		Issuer:    "flowcanvas-backend",
		Audience:  []string{"flowcanvas-api"},
	})
	require.NoError(t, err)
	verifier := NewJWTVerifier(validator)

	// Act
	identity, err := verifier.Verify(ctx, session.Token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, identity.UserID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Contains(t, identity.Roles, "editor")

	_, err = verifier.Verify(ctx, "not-a-token")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
}
