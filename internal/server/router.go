package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"purchases/internal/infrastructure/auth"
	"purchases/internal/infrastructure/metrics"
)

type OrderRoutes interface {
	Routes(r chi.Router)
}

type RouterDeps struct {
	Orders        OrderRoutes
	Authenticator auth.Authenticator
	Health        http.Handler
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(Metrics(deps.Metrics))
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", deps.Health)
		r.Route("/orders", func(r chi.Router) {
			r.Use(Authenticate(deps.Authenticator, deps.Logger))
			deps.Orders.Routes(r)
		})
	})

	return r
}
