package httpx

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by any infrastructure dependency that exposes
// a Ping method (database, RedisClient, EventBus, ImageStore all qualify).
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecks maps a dependency name to its checker. Nil entries are
// reported as "disabled" and do not affect the overall status.
type HealthChecks map[string]HealthChecker

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler returns an http.HandlerFunc that runs all registered
// HealthCheckers and reports degraded status if any of them fail.
func HealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		for name, checker := range checks {
			if checker == nil {
				resp.Checks[name] = "disabled"
				continue
			}
			if err := checker.Ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = "unreachable"
				continue
			}
			resp.Checks[name] = "ok"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, resp)
	}
}
