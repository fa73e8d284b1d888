package engine

import (
	"fmt"
	"math"

	"ar-reconciliation-engine/internal/models"
	"ar-reconciliation-engine/internal/scoring"
	"ar-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// Engine runs the staged matching pipeline over one request at a time.
// It holds configuration only; all per-request state is created inside
// Reconcile, so a single Engine is safe for concurrent use.
type Engine struct {
	config *Config
	log    logger.Logger
}

// New creates a matching engine with the given configuration. A nil
// config selects DefaultConfig.
func New(config *Config, log logger.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Engine{
		config: config.Clone(),
		log:    log.WithComponent("engine"),
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// resultSet accumulates the three output buckets while stages run.
type resultSet struct {
	high    []*models.MatchGroup
	review  []*models.MatchGroup
	noMatch []*models.MatchGroup
}

func (rs *resultSet) add(group *models.MatchGroup) {
	switch group.Confidence {
	case models.TierHigh:
		rs.high = append(rs.high, group)
	case models.TierReview:
		rs.review = append(rs.review, group)
	default:
		rs.noMatch = append(rs.noMatch, group)
	}
}

// Reconcile executes the five pipeline stages in strict sequence and
// returns the classified result buckets plus a summary. Stage order is a
// correctness contract: every stage's eligibility filter depends on the
// usage state written by the stages before it.
func (e *Engine) Reconcile(req *models.ReconciliationRequest) (*models.ReconciliationResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("reconciliation request cannot be nil")
	}

	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	lk := BuildLookups(req)
	tracker := NewUsageTracker()

	// Buckets start non-nil so empty ones serialize as [] and not null.
	results := &resultSet{
		high:    []*models.MatchGroup{},
		review:  []*models.MatchGroup{},
		noMatch: []*models.MatchGroup{},
	}

	e.stageOneToOne(req, lk, tracker, results)
	e.log.WithFields(logger.Fields{
		"used_payments": tracker.UsedPayments(),
		"used_invoices": tracker.UsedInvoices(),
	}).Debug("stage 1 (1:1) complete")

	e.stageManyToOne(req, lk, tracker, results)
	e.log.WithFields(logger.Fields{
		"used_payments": tracker.UsedPayments(),
		"used_invoices": tracker.UsedInvoices(),
	}).Debug("stage 2 (N:1) complete")

	e.stageOneToMany(req, lk, tracker, results)
	e.log.WithFields(logger.Fields{
		"used_payments": tracker.UsedPayments(),
		"used_invoices": tracker.UsedInvoices(),
	}).Debug("stage 3 (1:N) complete")

	e.stageFuzzyClusters(req, tracker, results)
	e.log.WithFields(logger.Fields{
		"used_payments": tracker.UsedPayments(),
		"used_invoices": tracker.UsedInvoices(),
	}).Debug("stage 4 (fuzzy clusters) complete")

	e.stageLeftovers(req, tracker, results)

	response := &models.ReconciliationResponse{
		HighConfidence: results.high,
		HitlReview:     results.review,
		NoMatch:        results.noMatch,
		Summary:        buildSummary(results, req),
	}

	e.log.WithFields(logger.Fields{
		"high":     len(results.high),
		"hitl":     len(results.review),
		"no_match": len(results.noMatch),
	}).Info("reconciliation complete")

	return response, nil
}

// softScores holds the per-pair soft attribute scores (everything except
// the identifier and amount terms).
type softScores struct {
	Name  float64
	Date  float64
	Memo  float64
	Terms float64
}

// scorePair computes the soft scores for one payment/invoice pair.
func scorePair(pay *models.Payment, inv *models.OpenItem) softScores {
	return softScores{
		Name:  scoring.NameScore(pay.CustomerName, inv.CustomerName),
		Date:  scoring.DateScore(pay.PaymentDate, inv.DueInDate, pay.ValueDate),
		Memo:  scoring.MemoLineScore(pay.MemoText, inv.MemoLine),
		Terms: scoring.PaymentTermsScore(pay.PaymentTermsHint, inv.PaymentTerms),
	}
}

// amountScore buckets a net amount difference using the configured
// tolerances.
func (e *Engine) amountScore(netDiff decimal.Decimal) float64 {
	return scoring.AmountScore(netDiff, e.config.TightAmountTolerance, e.config.LooseAmountTolerance)
}

// primaryScore computes the weighted score for the identifier-driven
// stages. The identifier term is certain there, so it contributes its
// full weight. Capped at 100.
func (e *Engine) primaryScore(amountScore float64, soft softScores) float64 {
	w := e.config.Primary
	score := w.ID*100.0 +
		w.Amount*amountScore +
		w.Name*soft.Name +
		w.Date*soft.Date +
		w.Memo*soft.Memo +
		w.Terms*soft.Terms
	return math.Min(100.0, score)
}

// fuzzyScore computes the weighted score for the cluster stage, which
// has no identifier term.
func (e *Engine) fuzzyScore(amountScore float64, soft softScores) float64 {
	w := e.config.Fuzzy
	score := w.Amount*amountScore +
		w.Name*soft.Name +
		w.Date*soft.Date +
		w.Memo*soft.Memo +
		w.Terms*soft.Terms
	return math.Min(100.0, score)
}

// withinTightTolerance reports whether a net difference qualifies for the
// high confidence tier.
func (e *Engine) withinTightTolerance(netDiff decimal.Decimal) bool {
	return netDiff.LessThanOrEqual(e.config.TightAmountTolerance)
}

// round2 rounds a score to two decimals for the wire format.
func round2(v float64) float64 {
	return math.Round(v*100.0) / 100.0
}

// buildSummary counts payments per bucket (a group may carry several
// payments) and counts unmatched invoices as no-match groups that carry
// invoices but no payments.
func buildSummary(rs *resultSet, req *models.ReconciliationRequest) models.Summary {
	summary := models.Summary{
		TotalPaymentsProcessed: len(req.Payments),
		TotalInvoicesProcessed: len(req.OpenItems),
	}

	for _, g := range rs.high {
		summary.HighConfidencePayments += len(g.PaymentIDs)
	}
	for _, g := range rs.review {
		summary.HitlReviewPayments += len(g.PaymentIDs)
	}
	for _, g := range rs.noMatch {
		if len(g.PaymentIDs) > 0 {
			summary.NoMatchPayments += len(g.PaymentIDs)
		}
		if len(g.InvoiceIDs) > 0 && len(g.PaymentIDs) == 0 {
			summary.NoMatchInvoices++
		}
	}

	return summary
}
