package engine

import (
	"encoding/json"
	"testing"

	"ar-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// pmt builds a payment for tests; refs are the referenced invoice IDs.
func pmt(id, amount, name, date string, refs ...string) *models.Payment {
	if refs == nil {
		refs = []string{}
	}
	return &models.Payment{
		PaymentID:    id,
		InvoiceIDs:   refs,
		CustomerName: name,
		Amount:       decimal.RequireFromString(amount),
		PaymentDate:  date,
	}
}

// inv builds an open invoice item for tests.
func inv(id, amount, name, due string) *models.OpenItem {
	return &models.OpenItem{
		InvoiceID:       id,
		CustomerName:    name,
		TotalOpenAmount: decimal.RequireFromString(amount),
		DueInDate:       due,
		IsOpen:          true,
	}
}

func allGroups(resp *models.ReconciliationResponse) []*models.MatchGroup {
	var groups []*models.MatchGroup
	groups = append(groups, resp.HighConfidence...)
	groups = append(groups, resp.HitlReview...)
	groups = append(groups, resp.NoMatch...)
	return groups
}

func TestReconcileNilRequest(t *testing.T) {
	eng := New(nil, nil)
	if _, err := eng.Reconcile(nil); err == nil {
		t.Error("Reconcile(nil) should fail")
	}
}

func TestReconcileInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.HighScoreThreshold = 200.0
	eng := New(config, nil)

	if _, err := eng.Reconcile(&models.ReconciliationRequest{}); err == nil {
		t.Error("Reconcile with invalid config should fail")
	}
}

func TestReconcilePerfectOneToOne(t *testing.T) {
	pay := pmt("P1", "1000.00", "Acme Corp", "20240115", "INV1")
	pay.MemoText = "January services"
	pay.PaymentTermsHint = "NET 30"

	item := inv("INV1", "1000.00", "Acme Corp", "20240115")
	item.MemoLine = "January services"
	item.PaymentTerms = "NET 30"

	eng := New(nil, nil)
	resp, err := eng.Reconcile(&models.ReconciliationRequest{
		Payments:  []*models.Payment{pay},
		OpenItems: []*models.OpenItem{item},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(resp.HighConfidence) != 1 {
		t.Fatalf("got %d high confidence groups, want 1", len(resp.HighConfidence))
	}
	if len(resp.HitlReview) != 0 || len(resp.NoMatch) != 0 {
		t.Fatalf("perfect match leaked into other buckets: hitl=%d no_match=%d",
			len(resp.HitlReview), len(resp.NoMatch))
	}

	group := resp.HighConfidence[0]
	if group.Reason != "1:1 perfect match" {
		t.Errorf("Reason = %q, want 1:1 perfect match", group.Reason)
	}
	if group.AvgScore != 100.0 {
		t.Errorf("AvgScore = %f, want 100.0", group.AvgScore)
	}
	if !group.NetAmountDiff.IsZero() {
		t.Errorf("NetAmountDiff = %s, want 0", group.NetAmountDiff)
	}
	if len(group.IDScores) != 1 || group.IDScores[0] != 100.0 {
		t.Errorf("IDScores = %v, want [100]", group.IDScores)
	}
	if group.Confidence != models.TierHigh {
		t.Errorf("Confidence = %s, want high", group.Confidence)
	}

	s := resp.Summary
	if s.HighConfidencePayments != 1 || s.TotalPaymentsProcessed != 1 || s.TotalInvoicesProcessed != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestReconcileNameMismatchOverride(t *testing.T) {
	// Identifier, amount, date, memo and terms all line up, but the
	// payer name has nothing to do with the invoice customer. The
	// numeric score clears the high bar; the override must still demote
	// the group to review.
	pay := pmt("P1", "1000.00", "Acme Corp", "20240115", "INV1")
	pay.MemoText = "January services"
	pay.PaymentTermsHint = "NET 30"

	item := inv("INV1", "1000.00", "Globex LLC", "20240115")
	item.MemoLine = "January services"
	item.PaymentTerms = "NET 30"

	eng := New(nil, nil)
	resp, err := eng.Reconcile(&models.ReconciliationRequest{
		Payments:  []*models.Payment{pay},
		OpenItems: []*models.OpenItem{item},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(resp.HighConfidence) != 0 {
		t.Fatal("name mismatch must never reach the high bucket")
	}
	if len(resp.HitlReview) != 1 {
		t.Fatalf("got %d review groups, want 1", len(resp.HitlReview))
	}

	group := resp.HitlReview[0]
	if group.Reason != "1:1 match but customer name mismatch - review required" {
		t.Errorf("Reason = %q, want flat mismatch reason", group.Reason)
	}
	if group.Confidence != models.TierReview {
		t.Errorf("Confidence = %s, want hitl", group.Confidence)
	}
}

func TestReconcileMissingNameSkipsOverride(t *testing.T) {
	// With no payer name at all the override cannot fire; the match
	// stays high confidence on the strength of the identifier and
	// amount.
	pay := pmt("P1", "1000.00", "", "20240115", "INV1")
	pay.MemoText = "January services"
	pay.PaymentTermsHint = "NET 30"

	item := inv("INV1", "1000.00", "Globex LLC", "20240115")
	item.MemoLine = "January services"
	item.PaymentTerms = "NET 30"

	eng := New(nil, nil)
	resp, err := eng.Reconcile(&models.ReconciliationRequest{
		Payments:  []*models.Payment{pay},
		OpenItems: []*models.OpenItem{item},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(resp.HighConfidence) != 1 {
		t.Fatalf("got %d high confidence groups, want 1", len(resp.HighConfidence))
	}
}

func TestReconcileClosedInvoiceExcluded(t *testing.T) {
	pay := pmt("P1", "1000.00", "Acme Corp", "20240115", "INV1")

	item := inv("INV1", "1000.00", "Acme Corp", "20240115")
	item.IsOpen = false

	eng := New(nil, nil)
	resp, err := eng.Reconcile(&models.ReconciliationRequest{
		Payments:  []*models.Payment{pay},
		OpenItems: []*models.OpenItem{item},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(resp.HighConfidence) != 0 || len(resp.HitlReview) != 0 {
		t.Fatal("closed invoice must not be matchable")
	}
	if len(resp.NoMatch) != 1 {
		t.Fatalf("got %d no-match groups, want 1 (the payment only)", len(resp.NoMatch))
	}
	if resp.NoMatch[0].Reason != "Unmatched payment" {
		t.Errorf("Reason = %q, want Unmatched payment", resp.NoMatch[0].Reason)
	}
	if resp.Summary.NoMatchInvoices != 0 {
		t.Errorf("closed invoice counted as unmatched: %+v", resp.Summary)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	request := &models.ReconciliationRequest{
		Payments: []*models.Payment{
			pmt("P1", "1000.00", "Acme Corp", "20240115", "INV1"),
			pmt("P2", "500.00", "Globex LLC", "20240116", "INV2"),
			pmt("P3", "75.00", "Initech", "20240120"),
		},
		OpenItems: []*models.OpenItem{
			inv("INV1", "1000.00", "Acme Corp", "20240115"),
			inv("INV2", "480.00", "Globex LLC", "20240110"),
			inv("INV3", "75.00", "INITECH", "20240120"),
		},
	}

	eng := New(nil, nil)

	first, err := eng.Reconcile(request)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	second, err := eng.Reconcile(request)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if string(firstJSON) != string(secondJSON) {
		t.Error("identical requests must produce byte-identical responses")
	}
}

func TestReconcileSummaryCounts(t *testing.T) {
	request := &models.ReconciliationRequest{
		Payments: []*models.Payment{
			// Perfect 1:1 — one high confidence payment.
			pmt("P1", "1000.00", "Acme Corp", "20240115", "INV1"),
			// No references and no plausible counterpart — unmatched.
			pmt("P2", "33.33", "Umbrella Corp", "20240120"),
		},
		OpenItems: []*models.OpenItem{
			inv("INV1", "1000.00", "Acme Corp", "20240115"),
			// Nothing points here — unmatched invoice.
			inv("INV2", "900.00", "Stark Industries", "20240131"),
		},
	}

	eng := New(nil, nil)
	resp, err := eng.Reconcile(request)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	s := resp.Summary
	if s.HighConfidencePayments != 1 {
		t.Errorf("HighConfidencePayments = %d, want 1", s.HighConfidencePayments)
	}
	if s.HitlReviewPayments != 0 {
		t.Errorf("HitlReviewPayments = %d, want 0", s.HitlReviewPayments)
	}
	if s.NoMatchPayments != 1 {
		t.Errorf("NoMatchPayments = %d, want 1", s.NoMatchPayments)
	}
	if s.NoMatchInvoices != 1 {
		t.Errorf("NoMatchInvoices = %d, want 1", s.NoMatchInvoices)
	}
	if s.TotalPaymentsProcessed != 2 || s.TotalInvoicesProcessed != 2 {
		t.Errorf("totals wrong: %+v", s)
	}
}

func TestBuildLookups(t *testing.T) {
	request := &models.ReconciliationRequest{
		Payments: []*models.Payment{
			pmt("P1", "100.00", "Acme Corp", "20240115"),
		},
		OpenItems: []*models.OpenItem{
			inv("INV1", "100.00", "Acme Corp", "20240115"),
			{InvoiceID: "INV2", TotalOpenAmount: decimal.NewFromInt(50), IsOpen: false},
		},
	}

	lk := BuildLookups(request)

	if _, ok := lk.Payments["P1"]; !ok {
		t.Error("payment P1 missing from lookup")
	}
	if _, ok := lk.OpenItems["INV1"]; !ok {
		t.Error("open invoice INV1 missing from lookup")
	}
	if _, ok := lk.OpenItems["INV2"]; ok {
		t.Error("closed invoice INV2 must be filtered out")
	}
}

func TestEngineConfigIsolated(t *testing.T) {
	config := DefaultConfig()
	eng := New(config, nil)

	// Mutating the caller's config after construction must not leak in.
	config.HighScoreThreshold = 10.0
	if eng.Config().HighScoreThreshold == 10.0 {
		t.Error("engine must clone its configuration")
	}

	// The accessor returns a copy, too.
	eng.Config().HighScoreThreshold = 20.0
	if eng.Config().HighScoreThreshold == 20.0 {
		t.Error("Config() must return a copy")
	}
}
