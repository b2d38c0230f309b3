package export

import (
	"bank_backoffice/internal/domain"
	"bytes"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func sample() []domain.Transaction {
	at := time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC)
	return []domain.Transaction{
		{ID: "T001", AccountNumber: "100010001", CustomerName: "Alice Smith", Type: domain.LabelDeposit,
			Kind: domain.TxDeposit, Direction: domain.Credit, Amount: decimal.RequireFromString("1000"),
			TransactionDate: at, Status: domain.StatusCompleted, Description: "Initial deposit"},
		{ID: "T002", AccountNumber: "100010001", CustomerName: "Alice Smith", Type: domain.LabelWithdrawal,
			Kind: domain.TxWithdrawal, Direction: domain.Debit, Amount: decimal.RequireFromString("200.5"),
			TransactionDate: at, Status: domain.StatusReversed, Description: "ATM withdrawal (Reversed by Admin) with a rather long tail"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	f, err = ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, "transactions_20250721_090000.xlsx", f.FileName(time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC)))

	_, err = ParseFormat("csv")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, sample()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sample()))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	sheet := file.Sheets[0]
	assert.Equal(t, "Transactions", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "ID", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "T002", sheet.Rows[2].Cells[0].Value)
	amount, err := sheet.Rows[2].Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, -200.5, amount, 0.001)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	// Multi-byte runes are never split
	got := truncate("Überweisung für Müller über München", 10)
	assert.Equal(t, "Überwei...", got)
	assert.True(t, utf8.ValidString(got))
}
