package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"purchases/internal/config"
	"purchases/internal/infrastructure/auth"
	"purchases/internal/infrastructure/metrics"
)

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(context.Context) error {
	return p.err
}

type fakeBreaker struct {
	name  string
	state string
}

func (b fakeBreaker) Name() string  { return b.name }
func (b fakeBreaker) State() string { return b.state }

type fakeOrderRoutes struct{}

func (fakeOrderRoutes) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFromContext(r.Context())
		_, _ = w.Write([]byte(p.Username))
	})
	r.Get("/{publicId}", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
}

func newTestRouter(logger *zap.Logger, m *metrics.Metrics) http.Handler {
	return NewRouter(RouterDeps{
		Orders:        fakeOrderRoutes{},
		Authenticator: auth.HeaderAuthenticator{},
		Health:        HealthHandler("purchases-service", fakePinger{}, nil, logger),
		Metrics:       m,
		Logger:        logger,
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		breakers   []BreakerState
		wantCode   int
		wantStatus string
	}{
		{
			name:       "healthy",
			breakers:   []BreakerState{fakeBreaker{"catalog", "closed"}},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "open breaker degrades",
			breakers:   []BreakerState{fakeBreaker{"catalog", "closed"}, fakeBreaker{"payment", "open"}},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "database down",
			pingErr:    errors.New("connection refused"),
			breakers:   []BreakerState{fakeBreaker{"payment", "open"}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HealthHandler("purchases-service", fakePinger{err: tt.pingErr}, tt.breakers, zap.NewNop())
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var resp healthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "purchases-service", resp.Service)
			assert.Len(t, resp.Breakers, len(tt.breakers))
		})
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	h := newTestRouter(zap.NewNop(), nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_OrdersRequireAuthentication(t *testing.T) {
	h := newTestRouter(zap.NewNop(), nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-Username", "jane")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jane", w.Body.String())
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	h := newTestRouter(zap.NewNop(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc", nil)
	req.Header.Set("X-Username", "jane")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestLogger_RecordsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newTestRouter(zap.New(core), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?page=2", nil)
	req.Header.Set("X-Username", "jane")

	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/orders", fields["path"])
	assert.Contains(t, fields["route"], "/api/v1/orders")
	assert.Equal(t, int64(200), fields["status"])
	assert.Equal(t, true, fields["success"])
	assert.Equal(t, "page=2", fields["query"])
	assert.Equal(t, "jane", fields["user"])
	assert.NotEmpty(t, fields["traceId"])
}

func TestRequestLogger_WarnsOnClientErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newTestRouter(zap.New(core), nil)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.NotContains(t, entries[0].ContextMap(), "user")
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	h := newTestRouter(zap.NewNop(), m)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/health", "GET", "200")))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "purchases_http_requests_total")
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	srv := New(config.ServerConfig{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}, http.NotFoundHandler(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
