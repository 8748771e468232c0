package spreadsheet

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	remittance "pix-remittance/internal/remittance/domain"
)

const boletoLine = "23793381286000000000300000000000000000000000000"

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func sampleQueue(t *testing.T) []byte {
	return buildWorkbook(t, [][]any{
		{"Favorecido", "Valor", "Vencimento", "CPF/CNPJ", "Chave PIX", "Situação"},
		{"Maria Souza", 150.5, "12/03/2025", "123.456.789-09", "maria@example.com", "PAGAR"},
		{"João Lima", "1.234,56", 45728, "12.345.678/0001-90", "+5548999990000", "sim"},
		{"Pago Antes", 10, "01/03/2025", "98765432100", "pago@example.com", "PAGO"},
		{"Boleto Energia", 320, "15/03/2025", "11222333000181", boletoLine, "X"},
		{},
		{"Sem Valor", "abc", "algum dia", "", "0f5e7c2a-1b3d-4e6f-8a9b-0c1d2e3f4a5b", "x"},
	})
}

func TestReadQueue_FiltersAndParses(t *testing.T) {
	q, err := ReadQueue(sampleQueue(t))
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(q.PIX) != 3 {
		t.Fatalf("expected 3 pix rows, got %d", len(q.PIX))
	}
	if len(q.Boleto) != 1 || q.Boleto[0].SheetRow != 5 {
		t.Fatalf("unexpected boleto rows %+v", q.Boleto)
	}
	if q.NotToPay != 1 {
		t.Fatalf("expected 1 row not to pay, got %d", q.NotToPay)
	}

	rows := q.SheetRows()
	if rows[0] != 2 || rows[1] != 3 || rows[2] != 7 {
		t.Fatalf("unexpected sheet rows %v", rows)
	}

	payments := q.Payments()
	first := payments[0]
	if first.BeneficiaryName != "Maria Souza" || !first.Amount.Equal(decimalOf(t, "150.5")) {
		t.Fatalf("unexpected first payment %+v", first)
	}
	if !first.DueDate.Equal(time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first due date %v", first.DueDate)
	}

	second := payments[1]
	if !second.Amount.Equal(decimalOf(t, "1234.56")) {
		t.Fatalf("unexpected brazilian amount %s", second.Amount)
	}
	if !second.DueDate.Equal(time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected serial due date %v", second.DueDate)
	}
	if second.Key != "+5548999990000" {
		t.Fatalf("unexpected key %q", second.Key)
	}
}

func TestReadQueue_Diagnostics(t *testing.T) {
	q, err := ReadQueue(sampleQueue(t))
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(q.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", q.Diagnostics)
	}
	for _, d := range q.Diagnostics {
		if d.Row != 3 {
			t.Fatalf("expected diagnostics on batch row 3, got %+v", d)
		}
	}
	byField := q.Diagnostics.ByField()
	if byField[remittance.FieldAmount] != 1 || byField[remittance.FieldDueDate] != 1 {
		t.Fatalf("unexpected diagnostics %v", byField)
	}
	last := q.Payments()[2]
	if !last.Amount.IsZero() || !last.DueDate.IsZero() {
		t.Fatalf("expected degraded amount and date, got %+v", last)
	}
}

func TestReadQueue_NoStatusColumnKeepsAll(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Beneficiary", "Amount", "Key"},
		{"A", "10.00", "a@example.com"},
		{"B", "20.00", "b@example.com"},
	})
	q, err := ReadQueue(data)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(q.PIX) != 2 || q.NotToPay != 0 {
		t.Fatalf("unexpected queue %+v", q)
	}
}

func TestReadQueue_DottedAmountsByCellType(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Favorecido", "Valor", "Chave PIX"},
		{"Numero", 1.234, "a@example.com"},
		{"Texto", "1.234", "b@example.com"},
		{"Milhoes", "12.345.678", "c@example.com"},
	})
	q, err := ReadQueue(data)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	payments := q.Payments()
	if len(payments) != 3 || len(q.Diagnostics) != 0 {
		t.Fatalf("unexpected queue %+v", q)
	}
	for i, want := range []string{"1.234", "1234", "12345678"} {
		if !payments[i].Amount.Equal(decimalOf(t, want)) {
			t.Fatalf("row %d: amount = %s, want %s", i+1, payments[i].Amount, want)
		}
	}
}

func TestReadQueue_MissingKeyColumn(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Favorecido", "Valor"},
		{"A", "10.00"},
	})
	if _, err := ReadQueue(data); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column, got %v", err)
	}
}

func TestMarkRemitted_WritesStatus(t *testing.T) {
	data := sampleQueue(t)
	q, err := ReadQueue(data)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	updated, err := MarkRemitted(data, q.SheetRows(), 42)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(updated))
	if err != nil {
		t.Fatalf("open updated: %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	for _, cell := range []string{"F2", "F3", "F7"} {
		value, err := f.GetCellValue(sheet, cell)
		if err != nil {
			t.Fatalf("get %s: %v", cell, err)
		}
		if value != "REMETIDO NSA 000042" {
			t.Fatalf("%s: unexpected status %q", cell, value)
		}
	}
	if value, _ := f.GetCellValue(sheet, "F4"); value != "PAGO" {
		t.Fatalf("untouched row changed: %q", value)
	}

	again, err := ReadQueue(updated)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if len(again.PIX) != 0 {
		t.Fatalf("marked rows must not be queued again, got %d", len(again.PIX))
	}
}

func TestMarkRemitted_AddsStatusColumn(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Beneficiary", "Amount", "Key"},
		{"A", "10.00", "a@example.com"},
	})
	updated, err := MarkRemitted(data, []int{2}, 7)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(updated))
	if err != nil {
		t.Fatalf("open updated: %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	if title, _ := f.GetCellValue(sheet, "D1"); title != statusColumnTitle {
		t.Fatalf("expected status header, got %q", title)
	}
	if value, _ := f.GetCellValue(sheet, "D2"); value != "REMETIDO NSA 000007" {
		t.Fatalf("unexpected status %q", value)
	}
}

func decimalOf(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("decimal %s: %v", value, err)
	}
	return d
}
