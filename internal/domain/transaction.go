package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the semantic class of a ledger posting
type TransactionKind string

const (
	TxDeposit    TransactionKind = "Deposit"
	TxWithdrawal TransactionKind = "Withdrawal"
	TxTransfer   TransactionKind = "Transfer" // outflow from the owning account
	TxAdjustment TransactionKind = "Adjustment"
	TxReversal   TransactionKind = "Reversal"
)

// Direction is the effect a posting had on the balance
type Direction string

const (
	Credit Direction = "Credit"
	Debit  Direction = "Debit"
)

// DirectionOf returns the direction of a signed amount. Zero counts as a credit.
func DirectionOf(signed decimal.Decimal) Direction {
	if signed.IsNegative() {
		return Debit
	}
	return Credit
}

// TransactionType is the tagged variant recorded on every transaction.
// Label is the display string kept for readers of the type column.
type TransactionType struct {
	Kind      TransactionKind
	Direction Direction
	Label     string
}

// Type labels
const (
	LabelDeposit              = "Deposit"
	LabelWithdrawal           = "Withdrawal"
	LabelTransfer             = "Transfer"
	LabelDepositAdjustment    = "Deposit (Adjustment)"
	LabelWithdrawalAdjustment = "Withdrawal (Adjustment)"
	LabelDepositReversal      = "Deposit (Reversal)"
	LabelWithdrawalReversal   = "Withdrawal (Reversal)"
	LabelTransferReversal     = "Deposit (Transfer Reversal)"
)

var (
	TypeDeposit            = TransactionType{TxDeposit, Credit, LabelDeposit}
	TypeWithdrawal         = TransactionType{TxWithdrawal, Debit, LabelWithdrawal}
	TypeTransfer           = TransactionType{TxTransfer, Debit, LabelTransfer}
	TypeDepositAdjustment  = TransactionType{TxAdjustment, Credit, LabelDepositAdjustment}
	TypeWithdrawAdjustment = TransactionType{TxAdjustment, Debit, LabelWithdrawalAdjustment}
	TypeDepositReversal    = TransactionType{TxReversal, Credit, LabelDepositReversal}
	TypeWithdrawalReversal = TransactionType{TxReversal, Debit, LabelWithdrawalReversal}
	TypeTransferReversal   = TransactionType{TxReversal, Credit, LabelTransferReversal}
)

var typesByLabel = map[string]TransactionType{
	LabelDeposit:              TypeDeposit,
	LabelWithdrawal:           TypeWithdrawal,
	LabelTransfer:             TypeTransfer,
	LabelDepositAdjustment:    TypeDepositAdjustment,
	LabelWithdrawalAdjustment: TypeWithdrawAdjustment,
	LabelDepositReversal:      TypeDepositReversal,
	LabelWithdrawalReversal:   TypeWithdrawalReversal,
	LabelTransferReversal:     TypeTransferReversal,
}

// ParseTransactionType maps a stored type label back to its variant.
// Used when importing rows that only carry the label.
func ParseTransactionType(label string) (TransactionType, bool) {
	t, ok := typesByLabel[strings.TrimSpace(label)]
	return t, ok
}

// AdjustmentType returns the adjustment variant for a signed amount
func AdjustmentType(signed decimal.Decimal) TransactionType {
	if signed.IsNegative() {
		return TypeWithdrawAdjustment
	}
	return TypeDepositAdjustment
}

// TransactionStatus is the state of a transaction
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "Pending"
	StatusCompleted TransactionStatus = "Completed"
	StatusFailed    TransactionStatus = "Failed"
	StatusReversed  TransactionStatus = "Reversed"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusReversed},
}

// CanTransition reports whether moving from s to next is legal.
// Failed and Reversed are terminal.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s TransactionStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transaction Model
//
// AccountNumber and CustomerName are a snapshot taken at creation and are
// never re-synced. Amount is a magnitude; Direction carries the sign.
type Transaction struct {
	ID              string            `gorm:"primaryKey;size:16" json:"id"`
	AccountID       string            `gorm:"size:16;index;not null" json:"account_id"`
	AccountNumber   string            `gorm:"size:9;not null" json:"account_number"`
	CustomerName    string            `gorm:"size:120;not null" json:"customer_name"`
	Type            string            `gorm:"size:40;index;not null" json:"type"`
	Kind            TransactionKind   `gorm:"size:16;not null" json:"kind"`
	Direction       Direction         `gorm:"size:8;not null" json:"direction"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"amount"`
	TransactionDate time.Time         `gorm:"index;not null" json:"transaction_date"`
	Status          TransactionStatus `gorm:"size:16;not null" json:"status"`
	Description     string            `gorm:"type:text" json:"description"`
}

// SignedAmount returns the amount with the sign of its direction
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
