// Package export renders transaction reports as PDF or XLSX.
package export

import (
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/ledger"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/tealeg/xlsx"
)

// Format is a report file format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

const dateLayout = "2006-01-02 15:04:05"

var headers = []string{"ID", "Date", "Account", "Customer", "Type", "Amount", "Status", "Description"}

// ParseFormat accepts a format name case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", domain.Validation("format must be pdf or xlsx")
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName names a report generated at t
func (f Format) FileName(t time.Time) string {
	return fmt.Sprintf("transactions_%s.%s", t.Format("20060102_150405"), f)
}

// Write renders txns to w in format f
func Write(w io.Writer, f Format, txns []domain.Transaction) error {
	if f == FormatPDF {
		return WritePDF(w, txns)
	}
	return WriteXLSX(w, txns)
}

func signed(t *domain.Transaction) string {
	return ledger.Money(t.SignedAmount())
}

// WritePDF renders txns as an A4 landscape table
func WritePDF(w io.Writer, txns []domain.Transaction) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // Core fonts are cp1252
	widths := []float64{24, 36, 24, 38, 46, 26, 22, 61}

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Transactions Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for i := range txns {
		t := &txns[i]
		cells := []string{
			t.ID, t.TransactionDate.Format(dateLayout), t.AccountNumber, t.CustomerName,
			t.Type, signed(t), string(t.Status), truncate(t.Description, 40),
		}
		for j, c := range cells {
			align := ""
			if j == 5 {
				align = "R"
			}
			pdf.CellFormat(widths[j], 7, tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// WriteXLSX renders txns as a single-sheet workbook
func WriteXLSX(w io.Writer, txns []domain.Transaction) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Transactions")
	if err != nil {
		return err
	}
	row := sheet.AddRow()
	for _, h := range headers {
		row.AddCell().SetString(h)
	}
	for i := range txns {
		t := &txns[i]
		row = sheet.AddRow()
		row.AddCell().SetString(t.ID)
		row.AddCell().SetString(t.TransactionDate.Format(dateLayout))
		row.AddCell().SetString(t.AccountNumber)
		row.AddCell().SetString(t.CustomerName)
		row.AddCell().SetString(t.Type)
		amount, _ := t.SignedAmount().Float64()
		row.AddCell().SetFloatWithFormat(amount, "#,##0.00")
		row.AddCell().SetString(string(t.Status))
		row.AddCell().SetString(t.Description)
	}
	return file.Write(w)
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
