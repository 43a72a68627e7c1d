package auth

import (
	"context"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"flowcanvas-backend/application/ports"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

// SupabaseVerifier implements ports.TokenVerifier against a hosted
// Supabase project, for deployments where the credential gateway is
// the managed provider rather than the local issuer.
type SupabaseVerifier struct {
	client *supabase.Client
	logger *zap.Logger
}

// NewSupabaseVerifier creates a verifier from the project URL and
// service role key
func NewSupabaseVerifier(url, serviceKey string, logger *zap.Logger) (*SupabaseVerifier, error) {
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, pkgerrors.NewExternalError("supabase", err)
	}
	return &SupabaseVerifier{client: client, logger: logger}, nil
}

var _ ports.TokenVerifier = (*SupabaseVerifier)(nil)

// Verify asks the provider who the token belongs to. GetUser does not
// take a context; the underlying HTTP request carries its own timeout.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*ports.Identity, error) {
	user, err := v.client.Auth.WithToken(token).GetUser()
	if err != nil {
		v.logger.Debug("token rejected by identity provider", zap.Error(err))
		return nil, pkgerrors.NewUnauthorizedError("invalid or expired token")
	}
	return &ports.Identity{
		UserID: user.ID.String(),
		Email:  user.Email,
		Roles:  []string{"authenticated"},
	}, nil
}
