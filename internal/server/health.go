package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type BreakerState interface {
	Name() string
	State() string
}

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Database  string            `json:"database"`
	Breakers  map[string]string `json:"breakers"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthHandler reports unhealthy only when the database cannot be reached.
// An open breaker degrades the service but the instance can still answer.
func HealthHandler(service string, db Pinger, breakers []BreakerState, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "healthy",
			Service:   service,
			Database:  "up",
			Breakers:  make(map[string]string, len(breakers)),
			Timestamp: time.Now().UTC(),
		}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check database ping failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Database = "down"
			code = http.StatusServiceUnavailable
		}

		for _, b := range breakers {
			state := b.State()
			resp.Breakers[b.Name()] = state
			if state != "closed" && resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", zap.Error(err))
		}
	}
}
