// Package scoring provides the per-attribute scoring functions that feed
// the weighted match confidence computation.
//
// Each scorer maps a pair of comparable attributes to a discrete bucketed
// score in [0,100]. Raw fuzzy similarities are never used directly;
// bucketing keeps downstream thresholds stable against small similarity
// jitter. No scorer returns an error: missing text contributes zero and
// an unparseable date degrades to a fixed neutral score.
package scoring

import (
	"sort"
	"strings"
	"unicode/utf8"

	"ar-reconciliation-engine/internal/models"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// DefaultDateScore is returned when either side of a date comparison
// fails to parse.
const DefaultDateScore = 50.0

// commonPaymentTerms are terms granted a partial score even without a
// matching hint on the payment side.
var commonPaymentTerms = map[string]bool{
	"NET 30":         true,
	"NET 15":         true,
	"DUE ON RECEIPT": true,
	"2/10 NET 30":    true,
}

// TokenSetRatio computes a case-insensitive fuzzy similarity in [0,100]
// tolerant of word reordering and token subsets. It tokenizes both
// strings, then compares the sorted token intersection against each
// side's full sorted token string, returning the best normalized
// Levenshtein similarity among the combinations. A string whose tokens
// are a subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	inA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		inA[t] = true
	}
	inB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		inB[t] = true
	}

	var sect, diffA, diffB []string
	for _, t := range tokensA {
		if inB[t] {
			sect = append(sect, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for _, t := range tokensB {
		if !inA[t] {
			diffB = append(diffB, t)
		}
	}

	sectStr := strings.Join(sect, " ")
	combinedA := joinNonEmpty(sectStr, strings.Join(diffA, " "))
	combinedB := joinNonEmpty(sectStr, strings.Join(diffB, " "))

	best := similarity(sectStr, combinedA)
	if s := similarity(sectStr, combinedB); s > best {
		best = s
	}
	if s := similarity(combinedA, combinedB); s > best {
		best = s
	}

	return best
}

// tokenize uppercases, splits on whitespace, dedupes and sorts tokens.
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToUpper(s))
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}

	sort.Strings(tokens)
	return tokens
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// similarity returns a normalized Levenshtein similarity in [0,100].
func similarity(a, b string) float64 {
	if a == b {
		return 100.0
	}

	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 100.0 * (1.0 - float64(dist)/float64(maxLen))
}

// NameScore compares two customer names and buckets the fuzzy similarity.
// Symmetric: NameScore(a, b) == NameScore(b, a).
func NameScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	s := TokenSetRatio(a, b)
	switch {
	case s == 100.0:
		return 100.0
	case s >= 95.0:
		return 95.0
	case s >= 90.0:
		return 90.0
	case s >= 80.0:
		return 80.0
	case s >= 70.0:
		return 70.0
	default:
		return 0.0
	}
}

// DateScore compares the payment date (preferring the value date when
// present) against the invoice due date and buckets the absolute day
// difference. Parse failures on either side return DefaultDateScore.
func DateScore(payDate, dueDate, valueDate string) float64 {
	ref := payDate
	if valueDate != "" {
		ref = valueDate
	}

	pay, err := models.ParseCompactDate(ref)
	if err != nil {
		return DefaultDateScore
	}

	due, err := models.ParseCompactDate(dueDate)
	if err != nil {
		return DefaultDateScore
	}

	days := int(pay.Sub(due).Hours() / 24)
	if days < 0 {
		days = -days
	}

	switch {
	case days == 0:
		return 100.0
	case days <= 1:
		return 95.0
	case days <= 3:
		return 90.0
	case days <= 7:
		return 80.0
	case days <= 10:
		return 70.0
	case days <= 30:
		return 50.0
	default:
		return 20.0
	}
}

// MemoLineScore compares a payment memo against an invoice memo line.
func MemoLineScore(payMemo, invMemo string) float64 {
	if payMemo == "" || invMemo == "" {
		return 0.0
	}

	s := TokenSetRatio(payMemo, invMemo)
	switch {
	case s >= 90.0:
		return 100.0
	case s >= 70.0:
		return 70.0
	default:
		return 0.0
	}
}

// PaymentTermsScore compares a payment terms hint against the invoice
// terms text: exact match scores full, substring containment in either
// direction scores 80, and a small set of common default terms score 50
// even without a hint.
func PaymentTermsScore(payHint, invTerms string) float64 {
	if invTerms == "" {
		return 0.0
	}

	payNorm := strings.ToUpper(payHint)
	invNorm := strings.ToUpper(invTerms)

	if payNorm == invNorm {
		return 100.0
	}

	if payNorm != "" && (strings.Contains(invNorm, payNorm) || strings.Contains(payNorm, invNorm)) {
		return 80.0
	}

	if commonPaymentTerms[invNorm] {
		return 50.0
	}

	return 0.0
}

// AmountScore buckets a net amount difference against a tight and a
// loose tolerance. Amount is always the dominant weight term, so the
// lowest bucket stays well above zero.
func AmountScore(netDiff, tightTolerance, looseTolerance decimal.Decimal) float64 {
	switch {
	case netDiff.LessThanOrEqual(tightTolerance):
		return 100.0
	case netDiff.LessThanOrEqual(looseTolerance):
		return 95.0
	default:
		return 60.0
	}
}
