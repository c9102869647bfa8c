package recon

import "time"

// Report is the reconciliation view of one product, derived entirely from
// append-only audit entries plus read-only snapshots of levels and holds.
// Reports never change state: findings are surfaced, not auto-corrected.
type Report struct {
	ProductID   int64     `json:"product_id"`
	GeneratedAt time.Time `json:"generated_at"`

	// Totals aggregated from audit entries, by reason. Sold, refunded and
	// shrinkage are reported as positive magnitudes; corrections stay signed.
	IntakeTotal      int64 `json:"intake_total"`
	TransferOutTotal int64 `json:"transfer_out_total"`
	TransferInTotal  int64 `json:"transfer_in_total"`
	SoldTotal        int64 `json:"sold_total"`
	RefundedTotal    int64 `json:"refunded_total"`
	ShrinkageTotal   int64 `json:"shrinkage_total"`
	CorrectionsTotal int64 `json:"corrections_total"`

	// On-hand as the audit trail implies it (sum of deltas per kind) next to
	// on-hand as the levels table currently records it.
	WarehouseAuditQty  int64 `json:"warehouse_audit_qty"`
	StorefrontAuditQty int64 `json:"storefront_audit_qty"`
	WarehouseOnHand    int64 `json:"warehouse_on_hand"`
	StorefrontOnHand   int64 `json:"storefront_on_hand"`

	// Active holds are informational: they never change on-hand and stay out
	// of the conservation identity.
	ActiveReservations int64 `json:"active_reservations"`

	Mismatch          int64    `json:"mismatch"`
	TransferImbalance int64    `json:"transfer_imbalance"`
	Findings          []string `json:"findings"`
	Consistent        bool     `json:"consistent"`
}

// Summary condenses a full scan.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Products    int       `json:"products"`
	Mismatched  int       `json:"mismatched"`
	Reports     []Report  `json:"reports"`
}
