package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"ar-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

func sampleResponse() *models.ReconciliationResponse {
	return &models.ReconciliationResponse{
		HighConfidence: []*models.MatchGroup{
			{
				PaymentIDs:         []string{"P1"},
				InvoiceIDs:         []string{"INV1"},
				TotalPaymentAmount: decimal.RequireFromString("1000.00"),
				TotalInvoiceAmount: decimal.RequireFromString("1000.00"),
				NetAmountDiff:      decimal.Zero,
				AvgScore:           100.0,
				Confidence:         models.TierHigh,
				Reason:             "1:1 perfect match",
			},
		},
		HitlReview: []*models.MatchGroup{
			{
				PaymentIDs:         []string{"P2", "P3"},
				InvoiceIDs:         []string{"INV2"},
				TotalPaymentAmount: decimal.RequireFromString("500.00"),
				TotalInvoiceAmount: decimal.RequireFromString("480.00"),
				NetAmountDiff:      decimal.RequireFromString("20.00"),
				AvgScore:           81.5,
				Confidence:         models.TierReview,
				Reason:             "N:1 good match",
			},
		},
		NoMatch: []*models.MatchGroup{
			{
				PaymentIDs:         []string{"P4"},
				InvoiceIDs:         []string{},
				TotalPaymentAmount: decimal.RequireFromString("42.00"),
				NetAmountDiff:      decimal.RequireFromString("42.00"),
				Confidence:         models.TierNoMatch,
				Reason:             "Unmatched payment",
			},
		},
		Summary: models.Summary{
			HighConfidencePayments: 1,
			HitlReviewPayments:     2,
			NoMatchPayments:        1,
			NoMatchInvoices:        0,
			TotalPaymentsProcessed: 4,
			TotalInvoicesProcessed: 2,
		},
	}
}

func TestOutputFormatIsValid(t *testing.T) {
	for _, f := range []OutputFormat{FormatConsole, FormatJSON, FormatCSV} {
		if !f.IsValid() {
			t.Errorf("format %s should be valid", f)
		}
	}
	if OutputFormat("xml").IsValid() {
		t.Error("xml should not be a valid format")
	}
}

func TestNewReportGeneratorRejectsInvalidConfig(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = "xml"
	if _, err := NewReportGenerator(config); err == nil {
		t.Error("invalid format should be rejected")
	}

	config = DefaultReportConfig()
	config.MaxReasonWidth = 2
	if _, err := NewReportGenerator(config); err == nil {
		t.Error("tiny reason width should be rejected")
	}
}

func TestGenerateJSONReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResponse(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	var decoded models.ReconciliationResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output does not decode: %v", err)
	}

	if len(decoded.HighConfidence) != 1 || decoded.HighConfidence[0].Reason != "1:1 perfect match" {
		t.Errorf("round-tripped response lost data: %+v", decoded.HighConfidence)
	}
	if decoded.Summary.TotalPaymentsProcessed != 4 {
		t.Errorf("summary lost: %+v", decoded.Summary)
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResponse(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Reconciliation Summary",
		"HIGH CONFIDENCE (1 groups)",
		"NEEDS REVIEW (1 groups)",
		"NO MATCH (1 groups)",
		"1:1 perfect match",
		"payments=[P2,P3]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateConsoleReportTruncatesReason(t *testing.T) {
	config := DefaultReportConfig()
	config.MaxReasonWidth = 20
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	response := sampleResponse()
	response.HighConfidence[0].Reason = strings.Repeat("long reason ", 10)

	var buf bytes.Buffer
	if err := generator.GenerateReport(response, &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	if !strings.Contains(buf.String(), "...") {
		t.Error("over-long reason should be truncated with an ellipsis")
	}
}

func TestGenerateCSVReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResponse(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d CSV lines, want header plus 3 groups:\n%s", len(lines), buf.String())
	}

	if !strings.HasPrefix(lines[0], "confidence,reason,") {
		t.Errorf("unexpected CSV header: %s", lines[0])
	}
	if !strings.Contains(lines[2], "P2;P3") {
		t.Errorf("multi-payment group should join IDs with semicolons: %s", lines[2])
	}
}

func TestGenerateCSVReportExcludesBuckets(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.IncludeNoMatch = false
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResponse(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	if strings.Contains(buf.String(), "Unmatched payment") {
		t.Error("no-match bucket should be excluded")
	}
}

func TestGenerateReportNilResponse(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(nil, &buf); err == nil {
		t.Error("nil response should be rejected")
	}
}
