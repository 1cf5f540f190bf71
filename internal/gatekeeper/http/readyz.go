package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the database. Also reports whether a SuperAdmin exists; an absent SuperAdmin does not make the service unready.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	rbacsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	rbacsdk.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, sa *service.SuperAdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &rbacsdk.HealthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else if state, err := sa.State(r.Context()); err != nil {
			checks.SuperAdmin = "unknown"
		} else {
			checks.SuperAdmin = state.String()
		}

		httpx.WriteJSON(w, code, rbacsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
