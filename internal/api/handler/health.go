package handler

import (
	"net/http"

	"github.com/hweng-dev/adsplice/internal/proxypool"
)

type RouteHealthResponse struct {
	ID          int    `json:"id"`
	Endpoint    string `json:"endpoint"`
	CoolingDown bool   `json:"cooling_down"`
	Failures    int    `json:"failures"`
}

type HealthResponse struct {
	Status string                `json:"status"`
	Routes []RouteHealthResponse `json:"routes,omitempty"`
}

// HealthHandler reports liveness plus the egress route pool state.
type HealthHandler struct {
	pool *proxypool.Pool
}

// NewHealthHandler creates a new HealthHandler. pool may be nil.
func NewHealthHandler(pool *proxypool.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// Get handles GET /health.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}

	if h.pool != nil {
		for _, rh := range h.pool.Health() {
			resp.Routes = append(resp.Routes, RouteHealthResponse{
				ID:          rh.ID,
				Endpoint:    rh.Endpoint,
				CoolingDown: rh.CoolingDown,
				Failures:    rh.ConsecutiveFailures,
			})
		}
	}

	JSON(w, http.StatusOK, resp)
}
