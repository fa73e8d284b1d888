// Package reporter renders reconciliation responses for human and
// machine consumption.
//
// Supported output formats:
//   - Console: human-readable summary and per-bucket tables
//   - JSON: the full response document, indented
//   - CSV: one row per match group for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ar-reconciliation-engine/internal/models"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeHighConfidence bool `json:"include_high_confidence"`
	IncludeReview         bool `json:"include_review"`
	IncludeNoMatch        bool `json:"include_no_match"`
	IncludeSummary        bool `json:"include_summary"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// Console options
	MaxReasonWidth int `json:"max_reason_width"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                FormatConsole,
		IncludeHighConfidence: true,
		IncludeReview:         true,
		IncludeNoMatch:        true,
		IncludeSummary:        true,
		CSVDelimiter:          ',',
		CSVHeaders:            true,
		MaxReasonWidth:        60,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.MaxReasonWidth < 10 {
		return fmt.Errorf("max reason width must be at least 10 characters, got %d", c.MaxReasonWidth)
	}

	return nil
}

// ReportGenerator renders responses according to its configuration.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a generator with the given configuration.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes the response to w in the configured format.
func (g *ReportGenerator) GenerateReport(response *models.ReconciliationResponse, w io.Writer) error {
	if response == nil {
		return fmt.Errorf("response cannot be nil")
	}

	switch g.config.Format {
	case FormatJSON:
		return g.generateJSON(response, w)
	case FormatCSV:
		return g.generateCSV(response, w)
	default:
		return g.generateConsole(response, w)
	}
}

func (g *ReportGenerator) generateJSON(response *models.ReconciliationResponse, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

func (g *ReportGenerator) generateConsole(response *models.ReconciliationResponse, w io.Writer) error {
	if g.config.IncludeSummary {
		s := response.Summary
		fmt.Fprintln(w, "=== Reconciliation Summary ===")
		fmt.Fprintf(w, "Payments processed:   %d\n", s.TotalPaymentsProcessed)
		fmt.Fprintf(w, "Invoices processed:   %d\n", s.TotalInvoicesProcessed)
		fmt.Fprintf(w, "High confidence:      %d payments\n", s.HighConfidencePayments)
		fmt.Fprintf(w, "Needs review (hitl):  %d payments\n", s.HitlReviewPayments)
		fmt.Fprintf(w, "No match:             %d payments, %d invoices\n", s.NoMatchPayments, s.NoMatchInvoices)
		fmt.Fprintln(w)
	}

	if g.config.IncludeHighConfidence {
		g.writeBucket(w, "HIGH CONFIDENCE", response.HighConfidence)
	}
	if g.config.IncludeReview {
		g.writeBucket(w, "NEEDS REVIEW", response.HitlReview)
	}
	if g.config.IncludeNoMatch {
		g.writeBucket(w, "NO MATCH", response.NoMatch)
	}

	return nil
}

func (g *ReportGenerator) writeBucket(w io.Writer, title string, groups []*models.MatchGroup) {
	fmt.Fprintf(w, "--- %s (%d groups) ---\n", title, len(groups))

	for _, group := range groups {
		reason := group.Reason
		if len(reason) > g.config.MaxReasonWidth {
			reason = reason[:g.config.MaxReasonWidth-3] + "..."
		}

		fmt.Fprintf(w, "  payments=[%s] invoices=[%s] paid=%s open=%s diff=%s score=%.2f  %s\n",
			strings.Join(group.PaymentIDs, ","),
			strings.Join(group.InvoiceIDs, ","),
			group.TotalPaymentAmount.StringFixed(2),
			group.TotalInvoiceAmount.StringFixed(2),
			group.NetAmountDiff.StringFixed(2),
			group.AvgScore,
			reason)
	}

	fmt.Fprintln(w)
}

func (g *ReportGenerator) generateCSV(response *models.ReconciliationResponse, w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = g.config.CSVDelimiter
	defer writer.Flush()

	if g.config.CSVHeaders {
		header := []string{
			"confidence", "reason", "payment_ids", "invoice_ids",
			"total_payment_amount", "total_invoice_amount", "net_amount_diff", "avg_score",
		}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	buckets := [][]*models.MatchGroup{}
	if g.config.IncludeHighConfidence {
		buckets = append(buckets, response.HighConfidence)
	}
	if g.config.IncludeReview {
		buckets = append(buckets, response.HitlReview)
	}
	if g.config.IncludeNoMatch {
		buckets = append(buckets, response.NoMatch)
	}

	for _, bucket := range buckets {
		for _, group := range bucket {
			record := []string{
				group.Confidence.String(),
				group.Reason,
				strings.Join(group.PaymentIDs, ";"),
				strings.Join(group.InvoiceIDs, ";"),
				group.TotalPaymentAmount.StringFixed(2),
				group.TotalInvoiceAmount.StringFixed(2),
				group.NetAmountDiff.StringFixed(2),
				strconv.FormatFloat(group.AvgScore, 'f', 2, 64),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	return writer.Error()
}
