package di

import (
	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/infrastructure/config"
	"flowcanvas-backend/interfaces/http/rest"
	"flowcanvas-backend/pkg/auth"
	"flowcanvas-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	LogLevel    zap.AtomicLevel
	DiagramRepo ports.DiagramRepository
	UserRepo    ports.UserRepository
	EventBus    ports.EventBus
	Gateway     ports.CredentialGateway
	Verifier    ports.TokenVerifier
	Broadcaster *auth.IdentityBroadcaster
	Metrics     *observability.Collector
	Router      *rest.Router
}
