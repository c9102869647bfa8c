package recon

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockcore/stockcore/internal/platform/httpx"
)

// Handler wires HTTP endpoints for reconciliation reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the recon handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers recon routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/recon/products/{id}", h.check)
	r.Get("/recon/report", h.checkAll)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	fresh := r.URL.Query().Get("fresh") == "1"
	report, err := h.service.Check(r.Context(), id, fresh)
	if err != nil {
		h.logger.Error("recon check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) checkAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CheckAll(r.Context())
	if err != nil {
		h.logger.Error("recon scan failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
