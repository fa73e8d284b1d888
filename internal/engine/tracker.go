package engine

// UsageTracker records which payment and invoice identifiers have been
// claimed by a pipeline stage. It is the single piece of cross-stage
// shared state: stages mutate it, later stages read it, and an
// identifier once used is never released (monotonic, one-shot
// consumption).
type UsageTracker struct {
	payments map[string]struct{}
	invoices map[string]struct{}
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		payments: make(map[string]struct{}),
		invoices: make(map[string]struct{}),
	}
}

// UsePayment marks a payment identifier as consumed.
func (t *UsageTracker) UsePayment(id string) {
	t.payments[id] = struct{}{}
}

// UseInvoice marks an invoice identifier as consumed.
func (t *UsageTracker) UseInvoice(id string) {
	t.invoices[id] = struct{}{}
}

// PaymentUsed reports whether a payment identifier has been consumed.
func (t *UsageTracker) PaymentUsed(id string) bool {
	_, ok := t.payments[id]
	return ok
}

// InvoiceUsed reports whether an invoice identifier has been consumed.
func (t *UsageTracker) InvoiceUsed(id string) bool {
	_, ok := t.invoices[id]
	return ok
}

// UsedPayments returns the number of consumed payment identifiers.
func (t *UsageTracker) UsedPayments() int {
	return len(t.payments)
}

// UsedInvoices returns the number of consumed invoice identifiers.
func (t *UsageTracker) UsedInvoices() int {
	return len(t.invoices)
}
