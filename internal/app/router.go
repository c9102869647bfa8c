package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockcore/stockcore/internal/catalog"
	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/observability"
	"github.com/stockcore/stockcore/internal/recon"
	"github.com/stockcore/stockcore/internal/reservation"
	"github.com/stockcore/stockcore/internal/sales"
	"github.com/stockcore/stockcore/internal/transfer"
	"github.com/stockcore/stockcore/internal/warehouse"
	"github.com/stockcore/stockcore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CatalogHandler     *catalog.Handler
	LedgerHandler      *ledger.Handler
	WarehouseHandler   *warehouse.Handler
	TransferHandler    *transfer.Handler
	ReservationHandler *reservation.Handler
	SalesHandler       *sales.Handler
	ReconHandler       *recon.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with stockcore defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.WarehouseHandler != nil {
			params.WarehouseHandler.MountRoutes(r)
		}
		if params.TransferHandler != nil {
			params.TransferHandler.MountRoutes(r)
		}
		if params.ReservationHandler != nil {
			params.ReservationHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.ReconHandler != nil {
			params.ReconHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
