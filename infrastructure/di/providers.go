// Package di assembles the application's dependency graph with Wire.
package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/application/queries"
	"flowcanvas-backend/application/sharing"
	infraauth "flowcanvas-backend/infrastructure/auth"
	"flowcanvas-backend/infrastructure/config"
	"flowcanvas-backend/infrastructure/messaging"
	"flowcanvas-backend/infrastructure/messaging/eventbridge"
	"flowcanvas-backend/infrastructure/persistence/dynamodb"
	"flowcanvas-backend/interfaces/http/rest"
	"flowcanvas-backend/interfaces/http/rest/handlers"
	"flowcanvas-backend/pkg/auth"
	"flowcanvas-backend/pkg/observability"
)

const tokenAudience = "flowcanvas-api"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, zapCfg.Level, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideDiagramRepository creates the diagram repository, wrapped in
// a circuit breaker
func ProvideDiagramRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.DiagramRepository {
	repo := dynamodb.NewDiagramRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
	return dynamodb.NewBreakerRepository(repo, logger)
}

// ProvideUserRepository creates the user repository
func ProvideUserRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.UserRepository {
	return dynamodb.NewUserRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
}

// ProvideEventBus creates an event bus; without a configured bus name
// events are discarded
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	if cfg.EventBusName == "" {
		return messaging.NewNoopBus()
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideJWTGenerator creates the session token issuer
func ProvideJWTGenerator(cfg *config.Config) (*auth.JWTGenerator, error) {
	return auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SecretKey:  cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   []string{tokenAudience},
		ExpiryTime: cfg.TokenTTL,
	})
}

// ProvideIdentityBroadcaster creates the identity-state broadcaster
func ProvideIdentityBroadcaster() *auth.IdentityBroadcaster {
	return auth.NewIdentityBroadcaster()
}

// ProvideCredentialGateway creates the credential gateway
func ProvideCredentialGateway(
	users ports.UserRepository,
	generator *auth.JWTGenerator,
	broadcaster *auth.IdentityBroadcaster,
	logger *zap.Logger,
) ports.CredentialGateway {
	return infraauth.NewLocalGateway(users, generator, broadcaster, logger)
}

// ProvideTokenVerifier selects the verifier matching the configured
// auth provider
func ProvideTokenVerifier(cfg *config.Config, logger *zap.Logger) (ports.TokenVerifier, error) {
	if cfg.AuthProvider == config.AuthProviderSupabase {
		return infraauth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseServiceKey, logger)
	}

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  []string{tokenAudience},
	})
	if err != nil {
		return nil, err
	}
	return infraauth.NewJWTVerifier(validator), nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("flowcanvas")
}

// ProvideSharingResolver creates the sharing resolver
func ProvideSharingResolver(
	diagrams ports.DiagramRepository,
	users ports.UserRepository,
	bus ports.EventBus,
	logger *zap.Logger,
) *sharing.Resolver {
	return sharing.NewResolver(diagrams, users, bus, logger)
}

// ProvideGetDiagramHandler creates the get-diagram query handler
func ProvideGetDiagramHandler(diagrams ports.DiagramRepository, logger *zap.Logger) *queries.GetDiagramHandler {
	return queries.NewGetDiagramHandler(diagrams, logger)
}

// ProvideListDiagramsHandler creates the list-diagrams query handler
func ProvideListDiagramsHandler(diagrams ports.DiagramRepository, logger *zap.Logger) *queries.ListDiagramsHandler {
	return queries.NewListDiagramsHandler(diagrams, logger)
}

// ProvideAuthHandler creates the auth HTTP handler
func ProvideAuthHandler(
	gateway ports.CredentialGateway,
	users ports.UserRepository,
	metrics *observability.Collector,
	logger *zap.Logger,
) *handlers.AuthHandler {
	return handlers.NewAuthHandler(gateway, users, metrics, logger)
}

// ProvideDiagramHandler creates the diagram HTTP handler
func ProvideDiagramHandler(
	diagrams ports.DiagramRepository,
	bus ports.EventBus,
	resolver *sharing.Resolver,
	getDiagram *queries.GetDiagramHandler,
	listHandler *queries.ListDiagramsHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *handlers.DiagramHandler {
	return handlers.NewDiagramHandler(diagrams, bus, resolver, getDiagram, listHandler, metrics, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	diagramHandler *handlers.DiagramHandler,
	verifier ports.TokenVerifier,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(cfg, authHandler, diagramHandler, verifier, metrics, logger)
}
