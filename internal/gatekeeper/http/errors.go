package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// writeServiceError maps a service error onto its HTTP status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := service.MessageOf(err)

	switch service.KindOf(err) {
	case service.ErrUnauthorized:
		httpx.WriteError(w, http.StatusUnauthorized, rbacsdk.ErrorCodeUnauthorized, msg)
	case service.ErrForbidden:
		httpx.WriteError(w, http.StatusForbidden, rbacsdk.ErrorCodeForbidden, msg)
	case service.ErrNotFound:
		httpx.WriteError(w, http.StatusNotFound, rbacsdk.ErrorCodeNotFound, msg)
	case service.ErrConflict:
		httpx.WriteError(w, http.StatusConflict, rbacsdk.ErrorCodeConflict, msg)
	case service.ErrInvalidOperation:
		httpx.WriteError(w, http.StatusBadRequest, rbacsdk.ErrorCodeInvalidOperation, msg)
	default:
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, rbacsdk.ErrorCodeServerError, msg)
	}
}
