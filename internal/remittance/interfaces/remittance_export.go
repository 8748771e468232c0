package interfaces

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	remittance "pix-remittance/internal/remittance/domain"
)

// BuildSummaryPDF renders a one-page summary of a remittance.
func BuildSummaryPDF(rem *remittance.Remittance) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "PIX Remittance "+rem.FileName)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("NSA: %06d", rem.Sequence),
		fmt.Sprintf("Tenant: %s", rem.TenantID),
		fmt.Sprintf("Generated: %s", rem.GeneratedAt.Format(time.RFC3339)),
		fmt.Sprintf("Payments: %d", rem.PaymentCount),
		fmt.Sprintf("Records: %d", rem.RecordCount),
		fmt.Sprintf("Total (BRL): %s", formatCents(rem.TotalCents)),
		fmt.Sprintf("BLAKE3: %s", rem.Digest),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	if len(rem.Diagnostics) == 0 {
		pdf.Cell(0, 6, "No degraded fields.")
		pdf.Ln(5)
	} else {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(15, 6, "Row", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Field", "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 6, "Reason", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Fallback", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, d := range rem.Diagnostics {
			pdf.CellFormat(15, 6, strconv.Itoa(d.Row), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, d.Field, "1", 0, "L", false, 0, "")
			pdf.CellFormat(90, 6, tr(clip(d.Reason, 60)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, tr(clip(d.Fallback, 30)), "1", 0, "L", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryXLSX renders a summary workbook with a diagnostics sheet.
func BuildSummaryXLSX(rem *remittance.Remittance) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	diagSheet := "diagnostics"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(diagSheet)

	rows := [][2]any{
		{"File", rem.FileName},
		{"NSA", rem.Sequence},
		{"Tenant", rem.TenantID},
		{"Generated", rem.GeneratedAt.Format(time.RFC3339)},
		{"Payments", rem.PaymentCount},
		{"Records", rem.RecordCount},
		{"Total (BRL)", formatCents(rem.TotalCents)},
		{"BLAKE3", rem.Digest},
	}
	_ = f.SetCellValue(summarySheet, "A1", "PIX Remittance")
	for i, row := range rows {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	counts := rem.Diagnostics.ByField()
	fields := make([]string, 0, len(counts))
	for field := range counts {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	base := len(rows) + 4
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", base), "Degraded field")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", base), "Count")
	for i, field := range fields {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", base+i+1), field)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", base+i+1), counts[field])
	}

	_ = f.SetCellValue(diagSheet, "A1", "Row")
	_ = f.SetCellValue(diagSheet, "B1", "Field")
	_ = f.SetCellValue(diagSheet, "C1", "Reason")
	_ = f.SetCellValue(diagSheet, "D1", "Fallback")
	for i, d := range rem.Diagnostics {
		row := i + 2
		_ = f.SetCellValue(diagSheet, fmt.Sprintf("A%d", row), d.Row)
		_ = f.SetCellValue(diagSheet, fmt.Sprintf("B%d", row), d.Field)
		_ = f.SetCellValue(diagSheet, fmt.Sprintf("C%d", row), d.Reason)
		_ = f.SetCellValue(diagSheet, fmt.Sprintf("D%d", row), d.Fallback)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clip(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "~"
}
