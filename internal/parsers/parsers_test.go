package parsers

import (
	"os"
	"path/filepath"
	"testing"

	pkgerrors "ar-reconciliation-engine/pkg/errors"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadRequestFile(t *testing.T) {
	path := writeTempFile(t, "request.json", `{
		"payments": [
			{
				"payment_id": "P1",
				"invoice_ids": ["INV1"],
				"customer_name": "Acme Corp",
				"memo_text": "January services",
				"amount": 1000.00,
				"is_negative_payment": false,
				"payment_date": "20240115",
				"payment_terms_hint": "NET 30"
			}
		],
		"open_items": [
			{
				"invoice_id": "INV1",
				"customer_name": "Acme Corp",
				"total_open_amount": 1000.00,
				"due_in_date": "20240115",
				"isOpen": true,
				"payment_terms": "NET 30",
				"memo_line": "January services",
				"is_credit": false
			}
		]
	}`)

	request, err := LoadRequestFile(path)
	if err != nil {
		t.Fatalf("LoadRequestFile failed: %v", err)
	}

	if len(request.Payments) != 1 || len(request.OpenItems) != 1 {
		t.Fatalf("got %d payments and %d open items, want 1 and 1",
			len(request.Payments), len(request.OpenItems))
	}

	pay := request.Payments[0]
	if pay.PaymentID != "P1" || pay.CustomerName != "Acme Corp" {
		t.Errorf("unexpected payment: %+v", pay)
	}
	if pay.Amount.String() != "1000" {
		t.Errorf("Amount = %s, want 1000", pay.Amount)
	}

	item := request.OpenItems[0]
	if item.InvoiceID != "INV1" || !item.IsOpen {
		t.Errorf("unexpected open item: %+v", item)
	}
}

func TestLoadRequestFileMissing(t *testing.T) {
	_, err := LoadRequestFile(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	engineErr, ok := pkgerrors.AsEngineError(err)
	if !ok {
		t.Fatalf("expected an engine error, got %T", err)
	}
	if engineErr.Code != pkgerrors.CodeFileNotFound {
		t.Errorf("Code = %s, want %s", engineErr.Code, pkgerrors.CodeFileNotFound)
	}
}

func TestLoadRequestFileMalformed(t *testing.T) {
	path := writeTempFile(t, "bad.json", `{"payments": [`)

	if _, err := LoadRequestFile(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestLoadRequestFileDuplicateIDs(t *testing.T) {
	path := writeTempFile(t, "dup.json", `{
		"payments": [
			{"payment_id": "P1", "amount": 100, "payment_date": "20240115"},
			{"payment_id": "P1", "amount": 200, "payment_date": "20240116"}
		],
		"open_items": []
	}`)

	if _, err := LoadRequestFile(path); err == nil {
		t.Fatal("expected validation error for duplicate payment IDs")
	}
}

func TestLoadPaymentsFile(t *testing.T) {
	path := writeTempFile(t, "payments.csv",
		"payment_id,invoice_ids,customer_name,memo_text,amount,is_negative_payment,payment_date,value_date,payment_terms_hint\n"+
			"P1,INV1,Acme Corp,January services,\"$1,000.00\",false,20240115,,NET 30\n"+
			"P2,INV2;INV3,Globex LLC,,500.50,true,20240116,20240117,\n")

	payments, err := LoadPaymentsFile(path, nil)
	if err != nil {
		t.Fatalf("LoadPaymentsFile failed: %v", err)
	}

	if len(payments) != 2 {
		t.Fatalf("got %d payments, want 2", len(payments))
	}

	p1 := payments[0]
	if p1.PaymentID != "P1" {
		t.Errorf("PaymentID = %s, want P1", p1.PaymentID)
	}
	if p1.Amount.String() != "1000" {
		t.Errorf("Amount = %s, want 1000 (currency formatting stripped)", p1.Amount)
	}
	if len(p1.InvoiceIDs) != 1 || p1.InvoiceIDs[0] != "INV1" {
		t.Errorf("InvoiceIDs = %v, want [INV1]", p1.InvoiceIDs)
	}

	p2 := payments[1]
	if len(p2.InvoiceIDs) != 2 || p2.InvoiceIDs[0] != "INV2" || p2.InvoiceIDs[1] != "INV3" {
		t.Errorf("InvoiceIDs = %v, want [INV2 INV3] split on separator", p2.InvoiceIDs)
	}
	if !p2.IsNegativePayment {
		t.Error("P2 should be flagged negative")
	}
	if p2.ValueDate != "20240117" {
		t.Errorf("ValueDate = %s, want 20240117", p2.ValueDate)
	}
}

func TestLoadPaymentsFileAliases(t *testing.T) {
	path := writeTempFile(t, "payments.csv",
		"id,customer,amt,date\n"+
			"P1,Acme Corp,250.00,20240115\n")

	payments, err := LoadPaymentsFile(path, nil)
	if err != nil {
		t.Fatalf("LoadPaymentsFile failed: %v", err)
	}

	if len(payments) != 1 {
		t.Fatalf("got %d payments, want 1", len(payments))
	}
	if payments[0].PaymentID != "P1" || payments[0].CustomerName != "Acme Corp" {
		t.Errorf("aliases not resolved: %+v", payments[0])
	}
}

func TestLoadPaymentsFileMissingColumn(t *testing.T) {
	path := writeTempFile(t, "payments.csv",
		"payment_id,customer_name\n"+
			"P1,Acme Corp\n")

	_, err := LoadPaymentsFile(path, nil)
	if err == nil {
		t.Fatal("expected error for missing amount column")
	}

	engineErr, ok := pkgerrors.AsEngineError(err)
	if !ok {
		t.Fatalf("expected an engine error, got %T", err)
	}
	if engineErr.Code != pkgerrors.CodeMissingColumn {
		t.Errorf("Code = %s, want %s", engineErr.Code, pkgerrors.CodeMissingColumn)
	}
}

func TestLoadPaymentsFileBadAmount(t *testing.T) {
	path := writeTempFile(t, "payments.csv",
		"payment_id,amount,payment_date\n"+
			"P1,not-a-number,20240115\n")

	if _, err := LoadPaymentsFile(path, nil); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}

func TestLoadOpenItemsFile(t *testing.T) {
	path := writeTempFile(t, "items.csv",
		"invoice_id,customer_name,total_open_amount,due_in_date,isOpen,payment_terms,memo_line,is_credit\n"+
			"INV1,Acme Corp,1000.00,20240115,true,NET 30,January services,false\n"+
			"INV2,Globex LLC,500.00,20240110,false,,,false\n"+
			"CM1,Acme Corp,200.00,20240115,true,,,true\n")

	items, err := LoadOpenItemsFile(path, nil)
	if err != nil {
		t.Fatalf("LoadOpenItemsFile failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	if !items[0].IsOpen || items[1].IsOpen {
		t.Error("isOpen flags not parsed correctly")
	}
	if !items[2].IsCredit {
		t.Error("credit memo flag not parsed")
	}
	if items[0].PaymentTerms != "NET 30" {
		t.Errorf("PaymentTerms = %q, want NET 30", items[0].PaymentTerms)
	}
}

func TestLoadOpenItemsFileIsOpenDefaultsTrue(t *testing.T) {
	path := writeTempFile(t, "items.csv",
		"invoice_id,total_open_amount,due_in_date\n"+
			"INV1,1000.00,20240115\n")

	items, err := LoadOpenItemsFile(path, nil)
	if err != nil {
		t.Fatalf("LoadOpenItemsFile failed: %v", err)
	}

	if len(items) != 1 || !items[0].IsOpen {
		t.Error("an absent isOpen column should default to open")
	}
}

func TestPaymentsFileConfigValidate(t *testing.T) {
	config := DefaultPaymentsFileConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	config.AmountColumn = ""
	if err := config.Validate(); err == nil {
		t.Error("empty amount column should fail validation")
	}

	config = DefaultPaymentsFileConfig()
	config.InvoiceIDsSeparator = ""
	if err := config.Validate(); err == nil {
		t.Error("empty separator should fail validation")
	}
}

func TestOpenItemsFileConfigValidate(t *testing.T) {
	config := DefaultOpenItemsFileConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	config.DueDateColumn = " "
	if err := config.Validate(); err == nil {
		t.Error("blank due date column should fail validation")
	}
}

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"INV1;INV2;INV3", 3},
		{"INV1", 1},
		{"", 0},
		{" ; ; ", 0},
		{"INV1; ;INV2", 2},
	}

	for _, tt := range tests {
		got := splitIDs(tt.input, ";")
		if len(got) != tt.want {
			t.Errorf("splitIDs(%q) = %v, want %d ids", tt.input, got, tt.want)
		}
	}
}
