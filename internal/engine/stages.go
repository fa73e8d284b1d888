package engine

import (
	"fmt"
	"strings"

	"ar-reconciliation-engine/internal/models"
	"ar-reconciliation-engine/internal/scoring"

	"github.com/shopspring/decimal"
)

// stageOneToOne matches unused payments that reference exactly one
// invoice identifier against that invoice. Only pairs passing both the
// score threshold and the tight amount tolerance are claimed; a failing
// pair is left untouched for later stages to attempt. This is the only
// stage that leaves considered items unconsumed.
func (e *Engine) stageOneToOne(req *models.ReconciliationRequest, lk *Lookups, tracker *UsageTracker, results *resultSet) {
	for _, pay := range req.Payments {
		if tracker.PaymentUsed(pay.PaymentID) {
			continue
		}
		if len(pay.InvoiceIDs) != 1 {
			continue
		}

		iid := pay.InvoiceIDs[0]
		inv, ok := lk.OpenItems[iid]
		if !ok || tracker.InvoiceUsed(iid) {
			continue
		}

		// Single payment against a single invoice: no sign adjustment.
		netDiff := pay.Amount.Sub(inv.TotalOpenAmount).Abs()
		amountS := e.amountScore(netDiff)
		soft := scorePair(pay, inv)
		finalScore := e.primaryScore(amountS, soft)

		if finalScore < e.config.HighScoreThreshold || !e.withinTightTolerance(netDiff) {
			continue
		}

		group := &models.MatchGroup{
			PaymentIDs:          []string{pay.PaymentID},
			InvoiceIDs:          []string{iid},
			TotalPaymentAmount:  pay.Amount,
			TotalInvoiceAmount:  inv.TotalOpenAmount,
			NetAmountDiff:       netDiff,
			AvgScore:            round2(finalScore),
			IDScores:            []float64{100.0},
			AmountScores:        []float64{amountS},
			NameScores:          []float64{soft.Name},
			DateScores:          []float64{soft.Date},
			MemoScores:          []float64{soft.Memo},
			TermsScores:         []float64{soft.Terms},
			Confidence:          models.TierHigh,
			Reason:              "1:1 perfect match",
			IsNegativePayment:   pay.IsNegativePayment,
			PaymentMemoText:     pay.MemoText,
			InvoicePaymentTerms: []string{inv.PaymentTerms},
			InvoiceMemoLines:    []string{inv.MemoLine},
			InvoiceCreditFlags:  []bool{inv.IsCredit},
		}

		// An egregious name mismatch downgrades an otherwise perfect
		// match, but only when both sides carry a customer name.
		if bothNamesPresent(pay.CustomerName, inv.CustomerName) && soft.Name < e.config.NameOverrideThreshold {
			group.Confidence = models.TierReview
			if soft.Name < e.config.NameMismatchFloor {
				group.Reason = "1:1 match but customer name mismatch - review required"
			} else {
				group.Reason = fmt.Sprintf("1:1 match but name similarity only %.0f%% - review required", soft.Name)
			}
		}

		results.add(group)
		tracker.UsePayment(pay.PaymentID)
		tracker.UseInvoice(iid)
	}
}

// stageManyToOne groups still-unused single-reference payments by their
// target invoice and nets the group against the invoice's open amount.
// Unlike stage one, every considered invoice and all of its candidate
// payments are consumed regardless of the classification outcome: there
// is no backtracking once an invoice has been netted.
func (e *Engine) stageManyToOne(req *models.ReconciliationRequest, lk *Lookups, tracker *UsageTracker, results *resultSet) {
	invToPays := make(map[string][]*models.Payment)
	var invOrder []string

	for _, pay := range req.Payments {
		if tracker.PaymentUsed(pay.PaymentID) {
			continue
		}
		// Multi-reference payments belong to the 1:N stage.
		if len(pay.InvoiceIDs) != 1 {
			continue
		}

		iid := pay.InvoiceIDs[0]
		if _, ok := lk.OpenItems[iid]; !ok || tracker.InvoiceUsed(iid) {
			continue
		}

		if _, seen := invToPays[iid]; !seen {
			invOrder = append(invOrder, iid)
		}
		invToPays[iid] = append(invToPays[iid], pay)
	}

	for _, iid := range invOrder {
		pays := invToPays[iid]
		inv := lk.OpenItems[iid]

		netPay := decimal.Zero
		totalPay := decimal.Zero
		for _, pay := range pays {
			netPay = netPay.Add(pay.SignedAmount())
			totalPay = totalPay.Add(pay.Amount)
		}
		netDiff := netPay.Sub(inv.TotalOpenAmount).Abs()
		amountS := e.amountScore(netDiff)

		soft := make([]softScores, len(pays))
		for i, pay := range pays {
			soft[i] = scorePair(pay, inv)
		}

		// A single bad name inside the group forces review for the
		// whole group; the first violation found wins.
		forceReview := false
		var forceReason string
		for i, pay := range pays {
			if bothNamesPresent(pay.CustomerName, inv.CustomerName) && soft[i].Name < e.config.NameOverrideThreshold {
				forceReview = true
				forceReason = fmt.Sprintf("N:1 match but %s has %.0f%% name similarity - review required",
					pay.PaymentID, soft[i].Name)
				break
			}
		}

		finalScore := e.primaryScore(amountS, averageSoftScores(soft))

		group := e.buildAggregateGroup(pays, []*models.OpenItem{inv}, totalPay, inv.TotalOpenAmount, netDiff, finalScore, amountS, soft)

		switch {
		case forceReview:
			group.Confidence = models.TierReview
			group.Reason = forceReason
		case finalScore >= e.config.HighScoreThreshold && e.withinTightTolerance(netDiff):
			group.Confidence = models.TierHigh
			group.Reason = "N:1 perfect net match"
		case finalScore >= e.config.ReviewScoreThreshold:
			group.Confidence = models.TierReview
			group.Reason = "N:1 good match"
		default:
			group.Confidence = models.TierNoMatch
			group.Reason = "N:1 score too low"
		}

		results.add(group)
		tracker.UseInvoice(iid)
		for _, pay := range pays {
			tracker.UsePayment(pay.PaymentID)
		}
	}
}

// stageOneToMany applies still-unused multi-reference payments against
// the open, unused subset of their referenced invoices. A payment left
// with fewer than two valid invoices becomes a standalone no-match and
// consumes only itself — the surviving invoices stay available for the
// fuzzy and leftover stages (asymmetric from N:1).
func (e *Engine) stageOneToMany(req *models.ReconciliationRequest, lk *Lookups, tracker *UsageTracker, results *resultSet) {
	for _, pay := range req.Payments {
		if tracker.PaymentUsed(pay.PaymentID) {
			continue
		}
		if len(pay.InvoiceIDs) <= 1 {
			continue
		}

		var validInvoices []*models.OpenItem
		for _, iid := range pay.InvoiceIDs {
			if inv, ok := lk.OpenItems[iid]; ok && !tracker.InvoiceUsed(iid) {
				validInvoices = append(validInvoices, inv)
			}
		}

		if len(validInvoices) <= 1 {
			results.add(e.buildUnmatchedPaymentGroup(pay, "No valid multi-invoice match"))
			tracker.UsePayment(pay.PaymentID)
			continue
		}

		netOpen := decimal.Zero
		for _, inv := range validInvoices {
			netOpen = netOpen.Add(inv.SignedOpenAmount())
		}
		target := pay.SignedAmount()
		netDiff := netOpen.Sub(target).Abs()
		amountS := e.amountScore(netDiff)

		soft := make([]softScores, len(validInvoices))
		for i, inv := range validInvoices {
			soft[i] = scorePair(pay, inv)
		}

		forceReview := false
		var forceReason string
		for i, inv := range validInvoices {
			if bothNamesPresent(pay.CustomerName, inv.CustomerName) && soft[i].Name < e.config.NameOverrideThreshold {
				forceReview = true
				forceReason = fmt.Sprintf("1:N match but %s has %.0f%% name similarity - review required",
					inv.InvoiceID, soft[i].Name)
				break
			}
		}

		finalScore := e.primaryScore(amountS, averageSoftScores(soft))

		group := e.buildAggregateGroup([]*models.Payment{pay}, validInvoices, pay.Amount, netOpen, netDiff, finalScore, amountS, soft)

		switch {
		case forceReview:
			group.Confidence = models.TierReview
			group.Reason = forceReason
		case finalScore >= e.config.HighScoreThreshold && e.withinTightTolerance(netDiff):
			group.Confidence = models.TierHigh
			group.Reason = "1:N perfect net match"
		case finalScore >= e.config.ReviewScoreThreshold:
			group.Confidence = models.TierReview
			group.Reason = "1:N good match"
		default:
			group.Confidence = models.TierNoMatch
			group.Reason = "1:N score too low"
		}

		results.add(group)
		tracker.UsePayment(pay.PaymentID)
		for _, inv := range validInvoices {
			tracker.UseInvoice(inv.InvoiceID)
		}
	}
}

// customerCluster groups unmatched payments and invoices under a fuzzy
// customer name. The representative name is fixed at the first member
// and never recomputed, so cluster composition depends on input order.
// That order sensitivity is intentional and load-bearing for downstream
// review tooling; do not replace it with a running centroid.
type customerCluster struct {
	name     string
	payments []*models.Payment
	invoices []*models.OpenItem
}

// stageFuzzyClusters recovers matches between leftover payments and
// invoices that share a similar customer name but were never linked by
// an invoice reference. Within a cluster each payment takes the single
// best-scoring invoice at or above the candidate threshold; ties break
// to the first maximum in iteration order.
func (e *Engine) stageFuzzyClusters(req *models.ReconciliationRequest, tracker *UsageTracker, results *resultSet) {
	var clusters []*customerCluster

	join := func(name string) *customerCluster {
		for _, cluster := range clusters {
			if scoring.NameScore(name, cluster.name) >= e.config.ClusterJoinThreshold {
				return cluster
			}
		}
		return nil
	}

	for _, pay := range req.Payments {
		if tracker.PaymentUsed(pay.PaymentID) || strings.TrimSpace(pay.CustomerName) == "" {
			continue
		}
		if cluster := join(pay.CustomerName); cluster != nil {
			cluster.payments = append(cluster.payments, pay)
		} else {
			clusters = append(clusters, &customerCluster{name: pay.CustomerName, payments: []*models.Payment{pay}})
		}
	}

	for _, inv := range req.OpenItems {
		if !inv.IsOpen || tracker.InvoiceUsed(inv.InvoiceID) || strings.TrimSpace(inv.CustomerName) == "" {
			continue
		}
		if cluster := join(inv.CustomerName); cluster != nil {
			cluster.invoices = append(cluster.invoices, inv)
		} else {
			clusters = append(clusters, &customerCluster{name: inv.CustomerName, invoices: []*models.OpenItem{inv}})
		}
	}

	for _, cluster := range clusters {
		for _, pay := range cluster.payments {
			if tracker.PaymentUsed(pay.PaymentID) {
				continue
			}

			var best *fuzzyCandidate
			for _, inv := range cluster.invoices {
				if tracker.InvoiceUsed(inv.InvoiceID) {
					continue
				}

				amountDiff := pay.Amount.Sub(inv.TotalOpenAmount).Abs()
				amountS := e.amountScore(amountDiff)
				soft := scorePair(pay, inv)
				score := e.fuzzyScore(amountS, soft)

				if score < e.config.FuzzyCandidateThreshold {
					continue
				}
				// Strict greater-than keeps the first maximum on ties.
				if best == nil || score > best.score {
					best = &fuzzyCandidate{
						invoice:     inv,
						score:       score,
						amountDiff:  amountDiff,
						amountScore: amountS,
						soft:        soft,
					}
				}
			}

			if best == nil {
				continue
			}

			var tier models.ConfidenceTier
			var reason string
			switch {
			case best.score >= e.config.FuzzyHighThreshold && e.withinTightTolerance(best.amountDiff):
				tier = models.TierHigh
				reason = "Fuzzy match - exact amount + strong signals"
			case best.score >= e.config.FuzzyReviewThreshold:
				tier = models.TierReview
				reason = "Fuzzy match - good candidate"
			default:
				// Candidate but below acceptance; leave both sides for
				// the leftover sweep.
				continue
			}

			inv := best.invoice
			results.add(&models.MatchGroup{
				PaymentIDs:          []string{pay.PaymentID},
				InvoiceIDs:          []string{inv.InvoiceID},
				TotalPaymentAmount:  pay.Amount,
				TotalInvoiceAmount:  inv.TotalOpenAmount,
				NetAmountDiff:       best.amountDiff,
				AvgScore:            round2(best.score),
				IDScores:            []float64{0.0},
				AmountScores:        []float64{best.amountScore},
				NameScores:          []float64{best.soft.Name},
				DateScores:          []float64{best.soft.Date},
				MemoScores:          []float64{best.soft.Memo},
				TermsScores:         []float64{best.soft.Terms},
				Confidence:          tier,
				Reason:              reason,
				IsNegativePayment:   pay.IsNegativePayment,
				PaymentMemoText:     pay.MemoText,
				InvoicePaymentTerms: []string{inv.PaymentTerms},
				InvoiceMemoLines:    []string{inv.MemoLine},
				InvoiceCreditFlags:  []bool{inv.IsCredit},
			})
			tracker.UsePayment(pay.PaymentID)
			tracker.UseInvoice(inv.InvoiceID)
		}
	}
}

// fuzzyCandidate carries the best invoice found for a payment inside a
// cluster, with its score breakdown for the audit arrays.
type fuzzyCandidate struct {
	invoice     *models.OpenItem
	score       float64
	amountDiff  decimal.Decimal
	amountScore float64
	soft        softScores
}

// stageLeftovers sweeps every remaining payment and open invoice into a
// standalone no-match record. This stage is terminal; it performs no
// consumption bookkeeping because nothing runs after it.
func (e *Engine) stageLeftovers(req *models.ReconciliationRequest, tracker *UsageTracker, results *resultSet) {
	for _, pay := range req.Payments {
		if !tracker.PaymentUsed(pay.PaymentID) {
			results.add(e.buildUnmatchedPaymentGroup(pay, "Unmatched payment"))
		}
	}

	for _, inv := range req.OpenItems {
		if inv.IsOpen && !tracker.InvoiceUsed(inv.InvoiceID) {
			results.add(&models.MatchGroup{
				PaymentIDs:          []string{},
				InvoiceIDs:          []string{inv.InvoiceID},
				TotalPaymentAmount:  decimal.Zero,
				TotalInvoiceAmount:  inv.TotalOpenAmount,
				NetAmountDiff:       inv.TotalOpenAmount,
				AvgScore:            0.0,
				IDScores:            []float64{},
				AmountScores:        []float64{},
				NameScores:          []float64{},
				DateScores:          []float64{},
				MemoScores:          []float64{},
				TermsScores:         []float64{},
				Confidence:          models.TierNoMatch,
				Reason:              "Unmatched invoice",
				InvoicePaymentTerms: []string{inv.PaymentTerms},
				InvoiceMemoLines:    []string{inv.MemoLine},
				InvoiceCreditFlags:  []bool{inv.IsCredit},
			})
		}
	}
}

// buildUnmatchedPaymentGroup produces a standalone no-match record for a
// payment that could not be applied to any invoice.
func (e *Engine) buildUnmatchedPaymentGroup(pay *models.Payment, reason string) *models.MatchGroup {
	return &models.MatchGroup{
		PaymentIDs:          []string{pay.PaymentID},
		InvoiceIDs:          []string{},
		TotalPaymentAmount:  pay.Amount,
		TotalInvoiceAmount:  decimal.Zero,
		NetAmountDiff:       pay.Amount,
		AvgScore:            0.0,
		IDScores:            []float64{},
		AmountScores:        []float64{},
		NameScores:          []float64{},
		DateScores:          []float64{},
		MemoScores:          []float64{},
		TermsScores:         []float64{},
		Confidence:          models.TierNoMatch,
		Reason:              reason,
		IsNegativePayment:   pay.IsNegativePayment,
		PaymentMemoText:     pay.MemoText,
		InvoicePaymentTerms: []string{},
		InvoiceMemoLines:    []string{},
		InvoiceCreditFlags:  []bool{},
	}
}

// buildAggregateGroup assembles a group for the N:1 and 1:N stages,
// replicating the certain identifier and shared amount score across the
// per-pair audit arrays. Confidence and reason are set by the caller.
func (e *Engine) buildAggregateGroup(pays []*models.Payment, invoices []*models.OpenItem,
	totalPay, totalInv, netDiff decimal.Decimal, finalScore, amountS float64, soft []softScores) *models.MatchGroup {

	pairs := len(soft)
	group := &models.MatchGroup{
		PaymentIDs:          make([]string, 0, len(pays)),
		InvoiceIDs:          make([]string, 0, len(invoices)),
		TotalPaymentAmount:  totalPay,
		TotalInvoiceAmount:  totalInv,
		NetAmountDiff:       netDiff,
		AvgScore:            round2(finalScore),
		IDScores:            repeatScore(100.0, pairs),
		AmountScores:        repeatScore(amountS, pairs),
		NameScores:          make([]float64, 0, pairs),
		DateScores:          make([]float64, 0, pairs),
		MemoScores:          make([]float64, 0, pairs),
		TermsScores:         make([]float64, 0, pairs),
		InvoicePaymentTerms: make([]string, 0, len(invoices)),
		InvoiceMemoLines:    make([]string, 0, len(invoices)),
		InvoiceCreditFlags:  make([]bool, 0, len(invoices)),
	}

	memos := make([]string, 0, len(pays))
	for _, pay := range pays {
		group.PaymentIDs = append(group.PaymentIDs, pay.PaymentID)
		memos = append(memos, pay.MemoText)
		if pay.IsNegativePayment {
			group.IsNegativePayment = true
		}
	}
	group.PaymentMemoText = strings.Join(memos, "; ")

	for _, inv := range invoices {
		group.InvoiceIDs = append(group.InvoiceIDs, inv.InvoiceID)
		group.InvoicePaymentTerms = append(group.InvoicePaymentTerms, inv.PaymentTerms)
		group.InvoiceMemoLines = append(group.InvoiceMemoLines, inv.MemoLine)
		group.InvoiceCreditFlags = append(group.InvoiceCreditFlags, inv.IsCredit)
	}

	for _, s := range soft {
		group.NameScores = append(group.NameScores, s.Name)
		group.DateScores = append(group.DateScores, s.Date)
		group.MemoScores = append(group.MemoScores, s.Memo)
		group.TermsScores = append(group.TermsScores, s.Terms)
	}

	return group
}

func repeatScore(v float64, n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = v
	}
	return scores
}

func averageSoftScores(soft []softScores) softScores {
	if len(soft) == 0 {
		return softScores{}
	}

	var avg softScores
	for _, s := range soft {
		avg.Name += s.Name
		avg.Date += s.Date
		avg.Memo += s.Memo
		avg.Terms += s.Terms
	}

	n := float64(len(soft))
	avg.Name /= n
	avg.Date /= n
	avg.Memo /= n
	avg.Terms /= n
	return avg
}

func bothNamesPresent(a, b string) bool {
	return strings.TrimSpace(a) != "" && strings.TrimSpace(b) != ""
}
