package warehouse

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/platform/httpx"
	"github.com/stockcore/stockcore/internal/shared"
)

// Handler wires HTTP endpoints for the warehouse module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the warehouse handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/intakes", h.receiveStock)
	r.Get("/batches/{id}", h.getBatch)
	r.Get("/batches", h.listBatches)
}

type intakeRequest struct {
	Code        string `json:"code"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Qty         int64  `json:"qty" validate:"required,gt=0"`
	UnitCost    string `json:"unit_cost" validate:"required"`
	TaxAmount   string `json:"tax_amount"`
	LandedCost  string `json:"landed_cost"`
	ExpiresAt   string `json:"expires_at"`
	Note        string `json:"note"`
}

func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := IntakeInput{
		Code:        req.Code,
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Qty:         req.Qty,
		Note:        req.Note,
		ActorID:     shared.ActorFromContext(r.Context()),
	}
	var err error
	if input.UnitCost, err = decimal.NewFromString(req.UnitCost); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit_cost")
		return
	}
	if req.TaxAmount != "" {
		if input.TaxAmount, err = decimal.NewFromString(req.TaxAmount); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tax_amount")
			return
		}
	}
	if req.LandedCost != "" {
		if input.LandedCost, err = decimal.NewFromString(req.LandedCost); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid landed_cost")
			return
		}
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse("2006-01-02", req.ExpiresAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid expires_at, expected YYYY-MM-DD")
			return
		}
		input.ExpiresAt = &t
	}

	batch, err := h.service.ReceiveStock(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	warehouseID, _ := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	batches, err := h.service.ListBatches(r.Context(), warehouseID, productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("warehouse request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
