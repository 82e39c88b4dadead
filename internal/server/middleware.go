package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"purchases/internal/infrastructure/auth"
	"purchases/internal/infrastructure/metrics"
)

// RequestLogger writes one record per request once the response is done.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// The principal is stored further down the chain; the holder lets
			// the log record see it.
			holder := &principalHolder{}
			r = r.WithContext(withPrincipalHolder(r.Context(), holder))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routePattern(r)),
				zap.Int("status", status),
				zap.Bool("success", status < http.StatusBadRequest),
				zap.Int64("durationMs", time.Since(start).Milliseconds()),
				zap.String("ip", r.RemoteAddr),
				zap.String("userAgent", r.UserAgent()),
				zap.String("query", r.URL.RawQuery),
				zap.String("traceId", middleware.GetReqID(r.Context())),
			}
			if holder.username != "" {
				fields = append(fields, zap.String("user", holder.username))
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("http request", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}

// Metrics counts requests and observes their latency by route pattern.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}

// Authenticate wraps auth.Middleware and reports the resolved username to
// RequestLogger.
func Authenticate(authn auth.Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	authMiddleware := auth.Middleware(authn, logger)
	return func(next http.Handler) http.Handler {
		record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				if holder, ok := principalHolderFrom(r.Context()); ok {
					holder.username = p.Username
				}
			}
			next.ServeHTTP(w, r)
		})
		return authMiddleware(record)
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type principalHolder struct {
	username string
}

type principalHolderKey struct{}

func withPrincipalHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, principalHolderKey{}, h)
}

func principalHolderFrom(ctx context.Context) (*principalHolder, bool) {
	h, ok := ctx.Value(principalHolderKey{}).(*principalHolder)
	return h, ok
}
