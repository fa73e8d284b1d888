// Package engine implements the staged accounts-receivable matching
// pipeline: an ordered cascade of five passes (1:1, N:1, 1:N, fuzzy
// customer clustering, leftover sweep) over one request's payments and
// open invoice items.
//
// The cascade is greedy by design: earlier stages claim identifier-certain
// matches first and a claimed payment or invoice is never reconsidered by
// a later stage. This is a documented trade-off, not a defect — the engine
// is not a globally optimal assignment solver. If requirements ever demand
// globally optimal assignment, the stage contract here has to change.
//
// Each invocation is a pure, synchronous, in-memory computation. All
// state (lookup maps, usage sets, result buckets) is request-scoped, so
// distinct invocations may run concurrently without coordination.
//
// Example usage:
//
//	eng := engine.New(engine.DefaultConfig(), log)
//	resp, err := eng.Reconcile(request)
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PrimaryWeights are the weighted-score coefficients for the
// identifier-driven stages (1:1, N:1, 1:N). The identifier term is
// certain in those stages, so it carries half the weight.
type PrimaryWeights struct {
	ID     float64 `json:"id_weight"`
	Amount float64 `json:"amount_weight"`
	Name   float64 `json:"name_weight"`
	Date   float64 `json:"date_weight"`
	Memo   float64 `json:"memo_weight"`
	Terms  float64 `json:"terms_weight"`
}

// FuzzyWeights are the coefficients for the fuzzy-cluster stage, which
// has no identifier term and leans harder on amount and name signals.
type FuzzyWeights struct {
	Amount float64 `json:"amount_weight"`
	Name   float64 `json:"name_weight"`
	Date   float64 `json:"date_weight"`
	Memo   float64 `json:"memo_weight"`
	Terms  float64 `json:"terms_weight"`
}

// Config holds the thresholds and weights driving stage classification.
// The defaults are normative for production reconciliation; alternate
// configurations exist for exploratory runs against low-quality data.
type Config struct {
	// Weights for the identifier-driven stages.
	Primary PrimaryWeights `json:"primary_weights"`

	// Weights for the fuzzy-cluster stage.
	Fuzzy FuzzyWeights `json:"fuzzy_weights"`

	// HighScoreThreshold is the minimum weighted score for a high
	// confidence classification in the identifier-driven stages.
	HighScoreThreshold float64 `json:"high_score_threshold"`

	// ReviewScoreThreshold is the minimum weighted score for a hitl
	// classification in the N:1 and 1:N stages.
	ReviewScoreThreshold float64 `json:"review_score_threshold"`

	// NameOverrideThreshold forces hitl when both customer names are
	// present and the name score falls below it, regardless of the
	// numeric score.
	NameOverrideThreshold float64 `json:"name_override_threshold"`

	// NameMismatchFloor separates a flat name-mismatch reason from a
	// quoted-similarity reason in the 1:1 override.
	NameMismatchFloor float64 `json:"name_mismatch_floor"`

	// ClusterJoinThreshold is the minimum name score for an item to join
	// an existing customer cluster in the fuzzy stage.
	ClusterJoinThreshold float64 `json:"cluster_join_threshold"`

	// FuzzyCandidateThreshold is the minimum fuzzy score for an invoice
	// to be considered a candidate at all.
	FuzzyCandidateThreshold float64 `json:"fuzzy_candidate_threshold"`

	// FuzzyHighThreshold classifies a fuzzy candidate as high confidence
	// (together with a tight amount difference).
	FuzzyHighThreshold float64 `json:"fuzzy_high_threshold"`

	// FuzzyReviewThreshold classifies a fuzzy candidate as hitl.
	FuzzyReviewThreshold float64 `json:"fuzzy_review_threshold"`

	// TightAmountTolerance is the net difference under which amounts are
	// considered settled (full amount score, high-tier eligibility).
	TightAmountTolerance decimal.Decimal `json:"tight_amount_tolerance"`

	// LooseAmountTolerance is the net difference under which amounts
	// still score nearly full.
	LooseAmountTolerance decimal.Decimal `json:"loose_amount_tolerance"`
}

// DefaultConfig returns the production matching configuration.
func DefaultConfig() *Config {
	return &Config{
		Primary: PrimaryWeights{
			ID:     0.50,
			Amount: 0.40,
			Name:   0.05,
			Date:   0.025,
			Memo:   0.015,
			Terms:  0.01,
		},
		Fuzzy: FuzzyWeights{
			Amount: 0.40,
			Name:   0.25,
			Date:   0.20,
			Memo:   0.10,
			Terms:  0.05,
		},
		HighScoreThreshold:      90.0,
		ReviewScoreThreshold:    80.0,
		NameOverrideThreshold:   85.0,
		NameMismatchFloor:       40.0,
		ClusterJoinThreshold:    90.0,
		FuzzyCandidateThreshold: 70.0,
		FuzzyHighThreshold:      85.0,
		FuzzyReviewThreshold:    75.0,
		TightAmountTolerance:    decimal.NewFromInt(1),
		LooseAmountTolerance:    decimal.NewFromInt(5),
	}
}

// RelaxedConfig returns a configuration for exploratory matching of
// low-quality staging data: wider amount tolerances and a lower bar for
// fuzzy candidates. Classification thresholds stay unchanged so the high
// tier keeps its meaning.
func RelaxedConfig() *Config {
	config := DefaultConfig()
	config.TightAmountTolerance = decimal.NewFromInt(2)
	config.LooseAmountTolerance = decimal.NewFromInt(10)
	config.FuzzyCandidateThreshold = 60.0
	return config
}

// Validate checks that thresholds are ordered and weights are sane.
func (c *Config) Validate() error {
	primarySum := c.Primary.ID + c.Primary.Amount + c.Primary.Name +
		c.Primary.Date + c.Primary.Memo + c.Primary.Terms
	if primarySum < 0.9 || primarySum > 1.1 {
		return fmt.Errorf("primary weights should sum to approximately 1.0, got %f", primarySum)
	}

	fuzzySum := c.Fuzzy.Amount + c.Fuzzy.Name + c.Fuzzy.Date +
		c.Fuzzy.Memo + c.Fuzzy.Terms
	if fuzzySum < 0.9 || fuzzySum > 1.1 {
		return fmt.Errorf("fuzzy weights should sum to approximately 1.0, got %f", fuzzySum)
	}

	for name, v := range map[string]float64{
		"high_score_threshold":      c.HighScoreThreshold,
		"review_score_threshold":    c.ReviewScoreThreshold,
		"name_override_threshold":   c.NameOverrideThreshold,
		"name_mismatch_floor":       c.NameMismatchFloor,
		"cluster_join_threshold":    c.ClusterJoinThreshold,
		"fuzzy_candidate_threshold": c.FuzzyCandidateThreshold,
		"fuzzy_high_threshold":      c.FuzzyHighThreshold,
		"fuzzy_review_threshold":    c.FuzzyReviewThreshold,
	} {
		if v < 0.0 || v > 100.0 {
			return fmt.Errorf("%s must be between 0 and 100: %f", name, v)
		}
	}

	if c.ReviewScoreThreshold > c.HighScoreThreshold {
		return fmt.Errorf("review threshold (%f) cannot exceed high threshold (%f)",
			c.ReviewScoreThreshold, c.HighScoreThreshold)
	}

	if c.FuzzyReviewThreshold > c.FuzzyHighThreshold {
		return fmt.Errorf("fuzzy review threshold (%f) cannot exceed fuzzy high threshold (%f)",
			c.FuzzyReviewThreshold, c.FuzzyHighThreshold)
	}

	if c.NameMismatchFloor > c.NameOverrideThreshold {
		return fmt.Errorf("name mismatch floor (%f) cannot exceed name override threshold (%f)",
			c.NameMismatchFloor, c.NameOverrideThreshold)
	}

	if c.TightAmountTolerance.IsNegative() {
		return fmt.Errorf("tight amount tolerance cannot be negative: %s", c.TightAmountTolerance.String())
	}

	if c.LooseAmountTolerance.LessThan(c.TightAmountTolerance) {
		return fmt.Errorf("loose amount tolerance (%s) cannot be below tight tolerance (%s)",
			c.LooseAmountTolerance.String(), c.TightAmountTolerance.String())
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{High: %.0f, Review: %.0f, NameOverride: %.0f, TightTol: %s, LooseTol: %s}",
		c.HighScoreThreshold, c.ReviewScoreThreshold, c.NameOverrideThreshold,
		c.TightAmountTolerance.String(), c.LooseAmountTolerance.String())
}
