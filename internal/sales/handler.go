package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/platform/httpx"
	"github.com/stockcore/stockcore/internal/reservation"
	"github.com/stockcore/stockcore/internal/shared"
)

// Handler wires HTTP endpoints for the sales module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.createDraft)
	r.Get("/sales", h.list)
	r.Get("/sales/{id}", h.get)
	r.Post("/sales/{id}/commit", h.commit)
	r.Post("/sales/{id}/cancel", h.cancel)
	r.Post("/sales/{id}/refunds", h.refund)
}

type draftLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Qty       int64  `json:"qty" validate:"required,gt=0"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type draftRequest struct {
	StorefrontID int64              `json:"storefront_id" validate:"required,gt=0"`
	Lines        []draftLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := DraftInput{
		StorefrontID: req.StorefrontID,
		ActorID:      shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit_price")
			return
		}
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, Qty: line.Qty, UnitPrice: price})
	}
	sale, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	storefrontID, _ := strconv.ParseInt(r.URL.Query().Get("storefront_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := Status(r.URL.Query().Get("status"))
	salesList, err := h.service.ListByStorefront(r.Context(), storefrontID, status, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": salesList})
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.Commit(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.CancelDraft(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type refundRequest struct {
	Lines []struct {
		LineID int64 `json:"line_id" validate:"required,gt=0"`
		Qty    int64 `json:"qty" validate:"required,gt=0"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req refundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	refunds := make([]RefundLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		refunds = append(refunds, RefundLine{LineID: line.LineID, Qty: line.Qty})
	}
	sale, err := h.service.Refund(r.Context(), id, refunds, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, reservation.ErrInsufficientAvailable):
		httpx.Problem(w, http.StatusConflict, "Insufficient Available Stock", err.Error())
	case errors.Is(err, ErrStaleReservation):
		httpx.Problem(w, http.StatusConflict, "Stale Reservation", err.Error())
	case errors.Is(err, ErrOverRefund):
		httpx.Problem(w, http.StatusConflict, "Over Refund", err.Error())
	case errors.Is(err, ErrAlreadyCommitted), errors.Is(err, ErrNotDraft), errors.Is(err, ErrNotCommitted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrEmptySale), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrStorefrontRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
