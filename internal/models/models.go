// Package models defines the request-scoped data model for accounts
// receivable reconciliation: incoming customer payments, open invoice
// items, and the match groups and summary produced by the engine.
//
// All monetary values use decimal.Decimal to avoid floating point drift
// in amount comparisons. Calendar dates travel as compact 8-digit strings
// (YYYYMMDD) and are parsed lazily; an unparseable date is a scoring
// degradation, never a request failure.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CompactDateLayout is the wire format for payment, value and due dates.
const CompactDateLayout = "20060102"

// ConfidenceTier classifies a match group into one of exactly three
// outcomes. The tier drives downstream posting: high confidence groups
// auto-post, hitl groups go to a review queue, no_match groups stay open.
type ConfidenceTier string

const (
	// TierHigh marks a group safe to post without human review.
	TierHigh ConfidenceTier = "high"
	// TierReview marks a group that needs human-in-the-loop adjudication.
	TierReview ConfidenceTier = "hitl"
	// TierNoMatch marks a payment or invoice the engine could not resolve.
	TierNoMatch ConfidenceTier = "no_match"
)

// String returns the string representation of ConfidenceTier
func (ct ConfidenceTier) String() string {
	return string(ct)
}

// IsValid checks if the confidence tier is one of the closed set
func (ct ConfidenceTier) IsValid() bool {
	return ct == TierHigh || ct == TierReview || ct == TierNoMatch
}

// Payment represents an incoming customer payment to be applied against
// open invoices. The number of referenced invoice identifiers determines
// which matching stage may claim the payment.
type Payment struct {
	PaymentID         string          `json:"payment_id"`
	InvoiceIDs        []string        `json:"invoice_ids"`
	CustomerName      string          `json:"customer_name"`
	MemoText          string          `json:"memo_text"`
	Amount            decimal.Decimal `json:"amount"`
	IsNegativePayment bool            `json:"is_negative_payment"`
	PaymentDate       string          `json:"payment_date"`
	ValueDate         string          `json:"value_date,omitempty"`
	PaymentTermsHint  string          `json:"payment_terms_hint"`
}

// SignedAmount returns the amount negated when the payment is a credit.
func (p *Payment) SignedAmount() decimal.Decimal {
	if p.IsNegativePayment {
		return p.Amount.Neg()
	}
	return p.Amount
}

// EffectiveDate returns the value date when present, otherwise the
// payment date. The value date is the preferred basis for date scoring.
func (p *Payment) EffectiveDate() string {
	if p.ValueDate != "" {
		return p.ValueDate
	}
	return p.PaymentDate
}

// Validate performs basic validation on the Payment
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.PaymentID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}

	if p.Amount.IsNegative() {
		return fmt.Errorf("payment amount cannot be negative: %s (use is_negative_payment for credits)", p.Amount.String())
	}

	return nil
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Amount: %s, Invoices: %v, Customer: %s}",
		p.PaymentID, p.Amount.String(), p.InvoiceIDs, p.CustomerName)
}

// OpenItem represents an invoice with an outstanding balance. Only items
// with IsOpen set are eligible for matching.
type OpenItem struct {
	InvoiceID       string          `json:"invoice_id"`
	CustomerName    string          `json:"customer_name"`
	TotalOpenAmount decimal.Decimal `json:"total_open_amount"`
	DueInDate       string          `json:"due_in_date"`
	IsOpen          bool            `json:"isOpen"`
	PaymentTerms    string          `json:"payment_terms"`
	MemoLine        string          `json:"memo_line"`
	IsCredit        bool            `json:"is_credit"`
}

// UnmarshalJSON decodes an open item with isOpen defaulting to true, so
// a document that omits the flag describes an open invoice rather than a
// silently closed one.
func (oi *OpenItem) UnmarshalJSON(data []byte) error {
	type openItemAlias OpenItem

	alias := openItemAlias{IsOpen: true}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	*oi = OpenItem(alias)
	return nil
}

// SignedOpenAmount returns the open amount negated when the item is a
// credit memo.
func (oi *OpenItem) SignedOpenAmount() decimal.Decimal {
	if oi.IsCredit {
		return oi.TotalOpenAmount.Neg()
	}
	return oi.TotalOpenAmount
}

// Validate performs basic validation on the OpenItem
func (oi *OpenItem) Validate() error {
	if strings.TrimSpace(oi.InvoiceID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}

	if oi.TotalOpenAmount.IsNegative() {
		return fmt.Errorf("open amount cannot be negative: %s (use is_credit for credit memos)", oi.TotalOpenAmount.String())
	}

	return nil
}

// String returns a string representation of the OpenItem
func (oi *OpenItem) String() string {
	return fmt.Sprintf("OpenItem{ID: %s, Open: %s, Due: %s, Customer: %s, IsOpen: %t}",
		oi.InvoiceID, oi.TotalOpenAmount.String(), oi.DueInDate, oi.CustomerName, oi.IsOpen)
}

// ReconciliationRequest is the full input to one engine invocation.
type ReconciliationRequest struct {
	Payments  []*Payment  `json:"payments"`
	OpenItems []*OpenItem `json:"open_items"`
}

// Validate checks structural validity of the request: non-empty records
// and identifier uniqueness within each collection. Batch size limits are
// enforced by the calling boundary, not here.
func (r *ReconciliationRequest) Validate() error {
	seenPayments := make(map[string]bool, len(r.Payments))
	for i, pay := range r.Payments {
		if pay == nil {
			return fmt.Errorf("payment at index %d is nil", i)
		}
		if err := pay.Validate(); err != nil {
			return fmt.Errorf("payment at index %d: %w", i, err)
		}
		if seenPayments[pay.PaymentID] {
			return fmt.Errorf("duplicate payment ID: %s", pay.PaymentID)
		}
		seenPayments[pay.PaymentID] = true
	}

	seenInvoices := make(map[string]bool, len(r.OpenItems))
	for i, item := range r.OpenItems {
		if item == nil {
			return fmt.Errorf("open item at index %d is nil", i)
		}
		if err := item.Validate(); err != nil {
			return fmt.Errorf("open item at index %d: %w", i, err)
		}
		if seenInvoices[item.InvoiceID] {
			return fmt.Errorf("duplicate invoice ID: %s", item.InvoiceID)
		}
		seenInvoices[item.InvoiceID] = true
	}

	return nil
}

// MatchGroup is one output record: a set of payments applied to a set of
// invoices, with aggregate amounts, the weighted confidence score, and
// parallel per-pair score arrays kept for audit.
type MatchGroup struct {
	PaymentIDs         []string        `json:"payment_ids"`
	InvoiceIDs         []string        `json:"invoice_ids"`
	TotalPaymentAmount decimal.Decimal `json:"total_payment_amount"`
	TotalInvoiceAmount decimal.Decimal `json:"total_invoice_amount"`
	NetAmountDiff      decimal.Decimal `json:"net_amount_diff"`
	AvgScore           float64         `json:"avg_score"`
	IDScores           []float64       `json:"id_scores"`
	AmountScores       []float64       `json:"amount_scores"`
	NameScores         []float64       `json:"name_scores"`
	DateScores         []float64       `json:"date_scores"`
	MemoScores         []float64       `json:"memo_scores"`
	TermsScores        []float64       `json:"terms_scores"`
	Confidence         ConfidenceTier  `json:"confidence"`
	Reason             string          `json:"reason"`

	// Source attributes echoed for downstream review tooling.
	IsNegativePayment   bool     `json:"is_negative_payment"`
	PaymentMemoText     string   `json:"payment_memo_text"`
	InvoicePaymentTerms []string `json:"invoice_payment_terms"`
	InvoiceMemoLines    []string `json:"invoice_memo_lines"`
	InvoiceCreditFlags  []bool   `json:"invoice_credit_flags"`
}

// Summary provides aggregate counts over the three result buckets.
type Summary struct {
	HighConfidencePayments int `json:"high_confidence_payments"`
	HitlReviewPayments     int `json:"hitl_review_payments"`
	NoMatchPayments        int `json:"no_match_payments"`
	NoMatchInvoices        int `json:"no_match_invoices"`
	TotalPaymentsProcessed int `json:"total_payments_processed"`
	TotalInvoicesProcessed int `json:"total_invoices_processed"`
}

// ReconciliationResponse is the full output of one engine invocation:
// three ordered result buckets plus the summary.
type ReconciliationResponse struct {
	HighConfidence []*MatchGroup `json:"high_confidence"`
	HitlReview     []*MatchGroup `json:"hitl_review"`
	NoMatch        []*MatchGroup `json:"no_match"`
	Summary        Summary       `json:"summary"`
}

// ParseCompactDate parses an 8-digit YYYYMMDD date string.
func ParseCompactDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	t, err := time.Parse(CompactDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid compact date '%s': %w", s, err)
	}

	return t, nil
}

// ParseAmountFromString parses a decimal amount from string, tolerating
// currency symbols and thousand separators as staging files contain them.
func ParseAmountFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}
