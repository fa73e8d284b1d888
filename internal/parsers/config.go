// Package parsers loads staged reconciliation input from files: JSON
// request documents and CSV exports of payments and open invoice items.
// CSV layouts are configurable per source system through column names
// and header aliases, since upstream staging tools rarely agree on
// headers.
package parsers

import (
	"fmt"
	"strings"
)

// PaymentsFileConfig describes the CSV layout of a payments export.
type PaymentsFileConfig struct {
	PaymentIDColumn  string `json:"payment_id_column"`
	InvoiceIDsColumn string `json:"invoice_ids_column"`
	CustomerColumn   string `json:"customer_column"`
	MemoColumn       string `json:"memo_column"`
	AmountColumn     string `json:"amount_column"`
	NegativeColumn   string `json:"negative_column"`
	PaymentDateColumn string `json:"payment_date_column"`
	ValueDateColumn  string `json:"value_date_column"`
	TermsHintColumn  string `json:"terms_hint_column"`

	// InvoiceIDsSeparator splits the invoice reference list inside a
	// single cell.
	InvoiceIDsSeparator string `json:"invoice_ids_separator"`

	HasHeader     bool              `json:"has_header"`
	Delimiter     rune              `json:"delimiter"`
	ColumnAliases map[string]string `json:"column_aliases"`
}

// OpenItemsFileConfig describes the CSV layout of an open items export.
type OpenItemsFileConfig struct {
	InvoiceIDColumn  string `json:"invoice_id_column"`
	CustomerColumn   string `json:"customer_column"`
	OpenAmountColumn string `json:"open_amount_column"`
	DueDateColumn    string `json:"due_date_column"`
	IsOpenColumn     string `json:"is_open_column"`
	TermsColumn      string `json:"terms_column"`
	MemoLineColumn   string `json:"memo_line_column"`
	IsCreditColumn   string `json:"is_credit_column"`

	HasHeader     bool              `json:"has_header"`
	Delimiter     rune              `json:"delimiter"`
	ColumnAliases map[string]string `json:"column_aliases"`
}

// DefaultPaymentsFileConfig returns the standard payments CSV layout.
func DefaultPaymentsFileConfig() *PaymentsFileConfig {
	return &PaymentsFileConfig{
		PaymentIDColumn:   "payment_id",
		InvoiceIDsColumn:  "invoice_ids",
		CustomerColumn:    "customer_name",
		MemoColumn:        "memo_text",
		AmountColumn:      "amount",
		NegativeColumn:    "is_negative_payment",
		PaymentDateColumn: "payment_date",
		ValueDateColumn:   "value_date",
		TermsHintColumn:   "payment_terms_hint",

		InvoiceIDsSeparator: ";",

		HasHeader: true,
		Delimiter: ',',
		ColumnAliases: map[string]string{
			"id":         "payment_id",
			"pay_id":     "payment_id",
			"invoices":   "invoice_ids",
			"references": "invoice_ids",
			"customer":   "customer_name",
			"payer":      "customer_name",
			"memo":       "memo_text",
			"amt":        "amount",
			"value":      "amount",
			"credit":     "is_negative_payment",
			"date":       "payment_date",
			"terms":      "payment_terms_hint",
		},
	}
}

// DefaultOpenItemsFileConfig returns the standard open items CSV layout.
func DefaultOpenItemsFileConfig() *OpenItemsFileConfig {
	return &OpenItemsFileConfig{
		InvoiceIDColumn:  "invoice_id",
		CustomerColumn:   "customer_name",
		OpenAmountColumn: "total_open_amount",
		DueDateColumn:    "due_in_date",
		IsOpenColumn:     "isOpen",
		TermsColumn:      "payment_terms",
		MemoLineColumn:   "memo_line",
		IsCreditColumn:   "is_credit",

		HasHeader: true,
		Delimiter: ',',
		ColumnAliases: map[string]string{
			"id":          "invoice_id",
			"inv_id":      "invoice_id",
			"customer":    "customer_name",
			"open_amount": "total_open_amount",
			"amount":      "total_open_amount",
			"due_date":    "due_in_date",
			"open":        "isOpen",
			"is_open":     "isOpen",
			"terms":       "payment_terms",
			"memo":        "memo_line",
			"credit":      "is_credit",
		},
	}
}

// Validate checks that the required columns are configured.
func (c *PaymentsFileConfig) Validate() error {
	for name, v := range map[string]string{
		"payment_id_column":   c.PaymentIDColumn,
		"amount_column":       c.AmountColumn,
		"payment_date_column": c.PaymentDateColumn,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}

	if c.InvoiceIDsSeparator == "" {
		return fmt.Errorf("invoice_ids_separator cannot be empty")
	}

	return nil
}

// Validate checks that the required columns are configured.
func (c *OpenItemsFileConfig) Validate() error {
	for name, v := range map[string]string{
		"invoice_id_column":  c.InvoiceIDColumn,
		"open_amount_column": c.OpenAmountColumn,
		"due_date_column":    c.DueDateColumn,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}

	return nil
}
