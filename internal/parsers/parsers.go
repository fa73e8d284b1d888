package parsers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"ar-reconciliation-engine/internal/models"
	pkgerrors "ar-reconciliation-engine/pkg/errors"
)

// LoadRequestFile reads a full reconciliation request from a JSON
// document, the same wire shape the HTTP boundary accepts.
func LoadRequestFile(path string) (*models.ReconciliationRequest, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
		}
		return nil, pkgerrors.FileError(pkgerrors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	var request models.ReconciliationRequest
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&request); err != nil {
		return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, 0, "", err)
	}

	if err := request.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CategoryValidation, pkgerrors.CodeInvalidData,
			fmt.Sprintf("invalid request in %s", path))
	}

	return &request, nil
}

// LoadPaymentsFile reads a payments CSV export.
func LoadPaymentsFile(path string, config *PaymentsFileConfig) ([]*models.Payment, error) {
	if config == nil {
		config = DefaultPaymentsFileConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, pkgerrors.ConfigurationError(pkgerrors.CodeInvalidConfig, "payments file config", err)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
		}
		return nil, pkgerrors.FileError(pkgerrors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = config.Delimiter
	reader.TrimLeadingSpace = true

	columns, err := resolveColumns(reader, config.HasHeader, config.ColumnAliases, path)
	if err != nil {
		return nil, err
	}

	required := []string{config.PaymentIDColumn, config.AmountColumn, config.PaymentDateColumn}
	if err := checkColumns(columns, required, path); err != nil {
		return nil, err
	}

	var payments []*models.Payment
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, line, "", err)
		}

		get := fieldGetter(columns, record)

		amount, err := models.ParseAmountFromString(get(config.AmountColumn))
		if err != nil {
			return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidData, path, line, config.AmountColumn, err)
		}

		payment := &models.Payment{
			PaymentID:         strings.TrimSpace(get(config.PaymentIDColumn)),
			InvoiceIDs:        splitIDs(get(config.InvoiceIDsColumn), config.InvoiceIDsSeparator),
			CustomerName:      strings.TrimSpace(get(config.CustomerColumn)),
			MemoText:          strings.TrimSpace(get(config.MemoColumn)),
			Amount:            amount,
			IsNegativePayment: parseBool(get(config.NegativeColumn)),
			PaymentDate:       strings.TrimSpace(get(config.PaymentDateColumn)),
			ValueDate:         strings.TrimSpace(get(config.ValueDateColumn)),
			PaymentTermsHint:  strings.TrimSpace(get(config.TermsHintColumn)),
		}

		if err := payment.Validate(); err != nil {
			return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidData, path, line, config.PaymentIDColumn, err)
		}

		payments = append(payments, payment)
	}

	return payments, nil
}

// LoadOpenItemsFile reads an open items CSV export.
func LoadOpenItemsFile(path string, config *OpenItemsFileConfig) ([]*models.OpenItem, error) {
	if config == nil {
		config = DefaultOpenItemsFileConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, pkgerrors.ConfigurationError(pkgerrors.CodeInvalidConfig, "open items file config", err)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
		}
		return nil, pkgerrors.FileError(pkgerrors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = config.Delimiter
	reader.TrimLeadingSpace = true

	columns, err := resolveColumns(reader, config.HasHeader, config.ColumnAliases, path)
	if err != nil {
		return nil, err
	}

	required := []string{config.InvoiceIDColumn, config.OpenAmountColumn, config.DueDateColumn}
	if err := checkColumns(columns, required, path); err != nil {
		return nil, err
	}

	var items []*models.OpenItem
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, line, "", err)
		}

		get := fieldGetter(columns, record)

		amount, err := models.ParseAmountFromString(get(config.OpenAmountColumn))
		if err != nil {
			return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidData, path, line, config.OpenAmountColumn, err)
		}

		item := &models.OpenItem{
			InvoiceID:       strings.TrimSpace(get(config.InvoiceIDColumn)),
			CustomerName:    strings.TrimSpace(get(config.CustomerColumn)),
			TotalOpenAmount: amount,
			DueInDate:       strings.TrimSpace(get(config.DueDateColumn)),
			IsOpen:          parseBoolDefault(get(config.IsOpenColumn), true),
			PaymentTerms:    strings.TrimSpace(get(config.TermsColumn)),
			MemoLine:        strings.TrimSpace(get(config.MemoLineColumn)),
			IsCredit:        parseBool(get(config.IsCreditColumn)),
		}

		if err := item.Validate(); err != nil {
			return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidData, path, line, config.InvoiceIDColumn, err)
		}

		items = append(items, item)
	}

	return items, nil
}

// resolveColumns maps canonical column names to record indexes using the
// header row and the configured aliases. Without a header the canonical
// order of the default config applies positionally.
func resolveColumns(reader *csv.Reader, hasHeader bool, aliases map[string]string, path string) (map[string]int, error) {
	columns := make(map[string]int)

	if !hasHeader {
		return columns, nil
	}

	header, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, 1, "", err)
	}

	for i, name := range header {
		name = strings.TrimSpace(name)
		if canonical, ok := aliases[strings.ToLower(name)]; ok {
			name = canonical
		}
		columns[name] = i
	}

	return columns, nil
}

func checkColumns(columns map[string]int, required []string, path string) error {
	if len(columns) == 0 {
		// Headerless files are read positionally; nothing to check.
		return nil
	}

	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return pkgerrors.ParseError(pkgerrors.CodeMissingColumn, path, 1, name, nil)
		}
	}

	return nil
}

func fieldGetter(columns map[string]int, record []string) func(string) string {
	return func(column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}
}

func splitIDs(s, separator string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, separator)
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "x":
		return true
	default:
		return false
	}
}

func parseBoolDefault(s string, def bool) bool {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return parseBool(s)
}
