package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	remittance "pix-remittance/internal/remittance/domain"
)

var (
	// ErrNoSheet is returned when the workbook has no sheets.
	ErrNoSheet = errors.New("payment queue: no sheets found")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("payment queue: missing required column")
)

type column int

const (
	colName column = iota
	colAmount
	colDueDate
	colDocument
	colKey
	colStatus
)

var columnAliases = map[column][]string{
	colName:     {"favorecido", "beneficiario", "beneficiary", "beneficiaryname", "fornecedor", "nome"},
	colAmount:   {"valor", "amount", "valorapagar", "valorpagamento"},
	colDueDate:  {"vencimento", "datavencimento", "datadevencimento", "datapagamento", "data", "duedate"},
	colDocument: {"cpfcnpj", "documento", "document", "cnpj", "cpf"},
	colKey:      {"chavepix", "chave", "pix", "chavepixcodigodebarras", "codigodebarras", "codigobarras", "key"},
	colStatus:   {"status", "pagar", "situacao", "topay"},
}

var toPayFlags = map[string]struct{}{
	"PAGAR": {}, "SIM": {}, "S": {}, "X": {}, "TRUE": {}, "1": {}, "OK": {}, "APROVADO": {},
}

// statusColumnTitle is used when a workbook without a status column is marked.
const statusColumnTitle = "Status"

// Row is one payable row of the queue.
type Row struct {
	SheetRow int
	Payment  remittance.PaymentInstruction
}

// Queue is the payment queue read from the first sheet of a workbook.
type Queue struct {
	Sheet       string
	PIX         []Row
	Boleto      []Row
	NotToPay    int
	Diagnostics remittance.Diagnostics
}

// Payments returns the PIX payments in sheet order.
func (q *Queue) Payments() []remittance.PaymentInstruction {
	payments := make([]remittance.PaymentInstruction, 0, len(q.PIX))
	for _, row := range q.PIX {
		payments = append(payments, row.Payment)
	}
	return payments
}

// SheetRows returns the sheet row numbers of the PIX payments.
func (q *Queue) SheetRows() []int {
	rows := make([]int, 0, len(q.PIX))
	for _, row := range q.PIX {
		rows = append(rows, row.SheetRow)
	}
	return rows
}

// ReadQueue parses an XLSX payment queue. The first row is the header; rows not
// flagged to pay are counted and dropped, rows whose key is a barcode go to
// Boleto. Unparseable amounts and dates are reported as diagnostics whose Row
// is the position of the payment in Payments().
func ReadQueue(data []byte) (*Queue, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("payment queue: open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("payment queue: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrMissingColumn)
	}

	columns := mapColumns(rows[0])
	for _, required := range []column{colAmount, colKey} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, columnAliases[required][0])
		}
	}

	q := &Queue{Sheet: sheet}
	for i, cells := range rows[1:] {
		if isBlank(cells) {
			continue
		}
		sheetRow := i + 2
		if _, ok := columns[colStatus]; ok && !toPay(cell(cells, columns, colStatus)) {
			q.NotToPay++
			continue
		}

		key := strings.TrimSpace(cell(cells, columns, colKey))
		payment := remittance.PaymentInstruction{
			BeneficiaryName: strings.TrimSpace(cell(cells, columns, colName)),
			Document:        strings.TrimSpace(cell(cells, columns, colDocument)),
			Key:             key,
		}
		if remittance.MethodOf(key) == remittance.MethodBoleto {
			q.Boleto = append(q.Boleto, Row{SheetRow: sheetRow, Payment: payment})
			continue
		}

		batchRow := len(q.PIX) + 1
		rawAmount := cell(cells, columns, colAmount)
		if amount, ok := parseCellAmount(f, sheet, columns[colAmount], sheetRow, rawAmount); ok {
			payment.Amount = amount
		} else {
			q.Diagnostics = append(q.Diagnostics, remittance.Diagnostic{
				Row:      batchRow,
				Field:    remittance.FieldAmount,
				Reason:   fmt.Sprintf("sheet row %d: unparseable amount %q", sheetRow, rawAmount),
				Fallback: "0",
			})
		}
		rawDate := cell(cells, columns, colDueDate)
		if due, ok := parseCellDate(rawDate); ok {
			payment.DueDate = due
		} else if strings.TrimSpace(rawDate) != "" {
			q.Diagnostics = append(q.Diagnostics, remittance.Diagnostic{
				Row:    batchRow,
				Field:  remittance.FieldDueDate,
				Reason: fmt.Sprintf("sheet row %d: unparseable date %q", sheetRow, rawDate),
			})
		}
		q.PIX = append(q.PIX, Row{SheetRow: sheetRow, Payment: payment})
	}
	return q, nil
}

// MarkRemitted writes the remittance sequence into the status column of the
// given sheet rows and returns the updated workbook.
func MarkRemitted(data []byte, sheetRows []int, sequence int) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("payment queue: open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("payment queue: read rows: %w", err)
	}
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	statusCol, ok := mapColumns(header)[colStatus]
	if !ok {
		statusCol = len(header)
		cellName, err := excelize.CoordinatesToCellName(statusCol+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cellName, statusColumnTitle); err != nil {
			return nil, err
		}
	}

	status := "REMETIDO NSA " + remittance.Numeric(strconv.Itoa(sequence), 6)
	for _, row := range sheetRows {
		cellName, err := excelize.CoordinatesToCellName(statusCol+1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cellName, status); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("payment queue: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func mapColumns(header []string) map[column]int {
	lookup := make(map[string]column)
	for col, aliases := range columnAliases {
		for _, alias := range aliases {
			lookup[alias] = col
		}
	}
	columns := make(map[column]int)
	for i, title := range header {
		col, ok := lookup[normalizeHeader(title)]
		if !ok {
			continue
		}
		if _, seen := columns[col]; !seen {
			columns[col] = i
		}
	}
	return columns
}

func normalizeHeader(title string) string {
	title = strings.TrimSpace(title)
	folded := remittance.Text(title, utf8.RuneCountInString(title))
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cell(cells []string, columns map[column]int, col column) string {
	idx, ok := columns[col]
	if !ok || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func isBlank(cells []string) bool {
	for _, value := range cells {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func toPay(status string) bool {
	_, ok := toPayFlags[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// parseCellAmount reads numeric cells as stored and text cells in any
// notation ParseAmount accepts, so a typed "1.234" is a thousand.
func parseCellAmount(f *excelize.File, sheet string, col, row int, raw string) (decimal.Decimal, bool) {
	if name, err := excelize.CoordinatesToCellName(col+1, row); err == nil {
		typ, err := f.GetCellType(sheet, name)
		if err == nil && typ != excelize.CellTypeSharedString && typ != excelize.CellTypeInlineString {
			if amount, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
				return amount, true
			}
		}
	}
	return remittance.ParseAmount(raw)
}

// parseCellDate accepts text dates and Excel serial numbers.
func parseCellDate(raw string) (time.Time, bool) {
	if due, ok := remittance.ParseDate(raw); ok {
		return due, true
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
