package transfer

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockcore/stockcore/internal/platform/httpx"
	"github.com/stockcore/stockcore/internal/shared"
	"github.com/stockcore/stockcore/internal/warehouse"
)

// Handler wires HTTP endpoints for the transfer module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the transfer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfers", h.create)
	r.Get("/transfers", h.list)
	r.Get("/transfers/{id}", h.get)
	r.Post("/transfers/{id}/fulfill", h.fulfill)
	r.Post("/transfers/{id}/cancel", h.cancel)
}

type createRequest struct {
	BatchID      int64  `json:"batch_id" validate:"required,gt=0"`
	StorefrontID int64  `json:"storefront_id" validate:"required,gt=0"`
	Qty          int64  `json:"qty" validate:"required,gt=0"`
	Note         string `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateRequest(r.Context(), RequestInput{
		BatchID:      req.BatchID,
		StorefrontID: req.StorefrontID,
		Qty:          req.Qty,
		Note:         req.Note,
		ActorID:      shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	storefrontID, _ := strconv.ParseInt(r.URL.Query().Get("storefront_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := Status(r.URL.Query().Get("status"))
	requests, err := h.service.List(r.Context(), status, storefrontID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transfers": requests})
}

func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	req, err := h.service.Fulfill(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	req, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, warehouse.ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrFulfillment):
		httpx.Problem(w, http.StatusConflict, "Transfer Fulfillment Failed", err.Error())
	case errors.Is(err, ErrNotRequested), errors.Is(err, warehouse.ErrBatchDepleted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("transfer request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
