package order

import (
	"database/sql"

	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/clients/catalog"
	"purchases/internal/clients/identity"
	"purchases/internal/clients/payment"
	"purchases/internal/config"
	"purchases/internal/infrastructure/auth"
	"purchases/internal/infrastructure/breaker"
	"purchases/internal/infrastructure/metrics"
	"purchases/internal/order/controller"
	orderrepo "purchases/internal/order/repository"
	"purchases/internal/order/saga"
	"purchases/internal/order/service"
	"purchases/internal/order/usecase"
)

type Module struct {
	Controller    *controller.OrderController
	Authenticator auth.Authenticator
	Breakers      []*breaker.Breaker
}

func NewModule(db *sql.DB, cfg *config.Config, publisher usecase.EventPublisher, m *metrics.Metrics, logger *zap.Logger) *Module {
	orderRepo := orderrepo.NewMySQLOrderRepository(db)
	orderItemRepo := orderrepo.NewMySQLOrderItemRepository(db)

	store := service.NewOrderStore(
		service.NewSQLTransactionManager(db, cfg.Order.TxTimeout),
		orderRepo,
		orderItemRepo,
		logger,
		cfg.Order.MaxRetryAttempts,
	)

	var authn auth.Authenticator = auth.HeaderAuthenticator{}
	if cfg.Auth.Enabled {
		authn = auth.NewIntrospector(cfg.Auth, cfg.Services.Timeout)
	} else {
		logger.Warn("authentication disabled, trusting the X-Username header")
	}

	settings := breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		Interval:         cfg.Breaker.Interval,
	}
	catalogBreaker := breaker.New("catalog", settings, logger, m)
	identityBreaker := breaker.New("identity", settings, logger, m)
	paymentBreaker := breaker.New("payment", settings, logger, m)

	newBase := func(dependency string, svc config.ServiceConfig, b *breaker.Breaker) *clients.Client {
		return clients.New(clients.Options{
			Dependency:  dependency,
			BaseURL:     svc.BaseURL,
			ServiceName: cfg.Services.Name,
			Timeout:     cfg.Services.Timeout,
		}, newTokenSource(dependency, cfg, logger), b, logger, m)
	}
	catalogClient := catalog.NewClient(newBase("catalog", cfg.Services.Catalog, catalogBreaker))
	identityClient := identity.NewClient(newBase("identity", cfg.Services.Identity, identityBreaker))
	paymentClient := payment.NewClient(newBase("payment", cfg.Services.Payment, paymentBreaker))

	orchestrator := saga.NewOrchestrator(catalogClient, paymentClient, store, logger, m)

	createUC := usecase.NewCreateOrderUseCase(store, catalogClient, identityClient, publisher, logger)
	confirmUC := usecase.NewConfirmOrderUseCase(orchestrator, paymentClient, publisher, logger)
	manageUC := usecase.NewManageOrdersUseCase(store, paymentClient, publisher, logger)

	return &Module{
		Controller:    controller.NewOrderController(createUC, confirmUC, manageUC, logger),
		Authenticator: authn,
		Breakers:      []*breaker.Breaker{catalogBreaker, identityBreaker, paymentBreaker},
	}
}

// newTokenSource gives each downstream client its own cached service token.
func newTokenSource(dependency string, cfg *config.Config, logger *zap.Logger) clients.TokenSource {
	if !cfg.Auth.Enabled {
		return clients.StaticToken("")
	}
	return auth.NewTokenProvider(cfg.Auth, cfg.Services.Timeout, logger.With(zap.String("dependency", dependency)))
}
