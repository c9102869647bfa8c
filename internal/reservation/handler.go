package reservation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/platform/httpx"
	"github.com/stockcore/stockcore/internal/shared"
)

// Handler wires HTTP endpoints for the reservation module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the reservation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers reservation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reservations", h.reserve)
	r.Get("/reservations", h.list)
	r.Get("/reservations/{id}", h.get)
	r.Post("/reservations/{id}/release", h.release)
}

type reserveRequest struct {
	StorefrontID int64  `json:"storefront_id" validate:"required,gt=0"`
	ProductID    int64  `json:"product_id" validate:"required,gt=0"`
	Qty          int64  `json:"qty" validate:"required,gt=0"`
	SaleLineRef  string `json:"sale_line_ref"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.Reserve(r.Context(), ReserveInput{
		StorefrontID: req.StorefrontID,
		ProductID:    req.ProductID,
		Qty:          req.Qty,
		SaleLineRef:  req.SaleLineRef,
		ActorID:      shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid reservation id")
		return
	}
	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	storefrontID, _ := strconv.ParseInt(r.URL.Query().Get("storefront_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := Status(r.URL.Query().Get("status"))
	reservations, err := h.service.ListByStorefront(r.Context(), storefrontID, status, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid reservation id")
		return
	}
	res, err := h.service.Release(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientAvailable):
		httpx.Problem(w, http.StatusConflict, "Insufficient Available Stock", err.Error())
	case errors.Is(err, ErrNotActive):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrStorefrontRequired), errors.Is(err, ledger.ErrUnknownReason):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("reservation request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
