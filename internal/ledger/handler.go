package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockcore/stockcore/internal/platform/httpx"
	"github.com/stockcore/stockcore/internal/shared"
)

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock-levels", h.getStockLevel)
	r.Get("/audit-trail", h.getAuditTrail)
	r.Post("/adjustments/shrinkage", h.postShrinkage)
	r.Post("/adjustments/correction", h.postCorrection)
}

type adjustmentRequest struct {
	Code         string `json:"code"`
	LocationKind string `json:"location_kind" validate:"required,oneof=WAREHOUSE STOREFRONT"`
	LocationID   int64  `json:"location_id" validate:"required,gt=0"`
	ProductID    int64  `json:"product_id" validate:"required,gt=0"`
	Qty          int64  `json:"qty" validate:"required"`
	Note         string `json:"note"`
	RefID        string `json:"ref_id"`
}

type auditEntryResponse struct {
	ID           int64  `json:"id"`
	LocationKind string `json:"location_kind"`
	LocationID   int64  `json:"location_id"`
	ProductID    int64  `json:"product_id"`
	Delta        int64  `json:"delta"`
	QtyBefore    int64  `json:"qty_before"`
	QtyAfter     int64  `json:"qty_after"`
	Reason       string `json:"reason"`
	ActorID      int64  `json:"actor_id"`
	RefModule    string `json:"ref_module,omitempty"`
	RefID        string `json:"ref_id,omitempty"`
	Note         string `json:"note,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

func toAuditEntryResponse(e AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:           e.ID,
		LocationKind: string(e.Location.Kind),
		LocationID:   e.Location.ID,
		ProductID:    e.ProductID,
		Delta:        e.Delta,
		QtyBefore:    e.QtyBefore,
		QtyAfter:     e.QtyAfter,
		Reason:       string(e.Reason),
		ActorID:      e.ActorID,
		RefModule:    e.RefModule,
		RefID:        e.RefID,
		Note:         e.Note,
		OccurredAt:   e.OccurredAt.Format(time.RFC3339Nano),
	}
}

func (h *Handler) getStockLevel(w http.ResponseWriter, r *http.Request) {
	loc, productID, ok := parseKey(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_kind, location_id and product_id are required")
		return
	}
	qty, err := h.service.GetQuantity(r.Context(), loc, productID)
	if err != nil {
		h.logger.Error("get stock level", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"location_kind": string(loc.Kind),
		"location_id":   loc.ID,
		"product_id":    productID,
		"qty":           qty,
	})
}

func (h *Handler) getAuditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TrailFilter{}
	if kind := q.Get("location_kind"); kind != "" {
		id, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
		if id == 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_id required with location_kind")
			return
		}
		filter.Location = &Location{Kind: LocationKind(kind), ID: id}
	}
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.Reason = Reason(q.Get("reason"))
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from timestamp")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to timestamp")
			return
		}
		filter.To = t
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	entries, err := h.service.AuditTrail(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit trail", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) postShrinkage(w http.ResponseWriter, r *http.Request) {
	h.postAdjustment(w, r, (*Service).PostShrinkage)
}

func (h *Handler) postCorrection(w http.ResponseWriter, r *http.Request) {
	h.postAdjustment(w, r, (*Service).PostCorrection)
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request, post func(*Service, context.Context, AdjustmentInput) (AuditEntry, error)) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := post(h.service, r.Context(), AdjustmentInput{
		Code:      req.Code,
		Location:  Location{Kind: LocationKind(req.LocationKind), ID: req.LocationID},
		ProductID: req.ProductID,
		Qty:       req.Qty,
		Note:      req.Note,
		ActorID:   shared.ActorFromContext(r.Context()),
		RefModule: "LEDGER",
		RefID:     req.RefID,
	})
	if err != nil {
		h.logger.Warn("post adjustment failed", slog.Any("error", err))
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAuditEntryResponse(entry))
}

func respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnknownReason):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parseKey(r *http.Request) (Location, int64, bool) {
	q := r.URL.Query()
	kind := q.Get("location_kind")
	locID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if kind == "" || locID == 0 || productID == 0 {
		return Location{}, 0, false
	}
	return Location{Kind: LocationKind(kind), ID: locID}, productID, true
}
