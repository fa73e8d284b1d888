package engine

import (
	"ar-reconciliation-engine/internal/models"
)

// Lookups provides identifier-keyed access to the request's records.
// OpenItems holds open invoices only; closed items never enter the
// pipeline. Lookups own no mutation logic — consumption state lives in
// the UsageTracker.
type Lookups struct {
	OpenItems map[string]*models.OpenItem
	Payments  map[string]*models.Payment
}

// BuildLookups indexes the request by identifier, filtering closed
// invoice items out.
func BuildLookups(req *models.ReconciliationRequest) *Lookups {
	lk := &Lookups{
		OpenItems: make(map[string]*models.OpenItem, len(req.OpenItems)),
		Payments:  make(map[string]*models.Payment, len(req.Payments)),
	}

	for _, item := range req.OpenItems {
		if item.IsOpen {
			lk.OpenItems[item.InvoiceID] = item
		}
	}

	for _, pay := range req.Payments {
		lk.Payments[pay.PaymentID] = pay
	}

	return lk
}
