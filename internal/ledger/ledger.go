// Package ledger applies balance changes to accounts. Every change updates
// the balance, records a transaction and writes an audit entry as one unit.
package ledger

import (
	"bank_backoffice/internal/audit"
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/ids"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AmountScale is the number of decimal places the balance columns hold
const AmountScale = 2

// MaxMagnitude bounds amounts and balances. SQLite keeps non-integer values
// as doubles, which stay exact up to 15 significant digits.
var MaxMagnitude = decimal.New(1, 13)

// ValidateAmount rejects amounts the balance columns cannot hold
func ValidateAmount(d decimal.Decimal) error {
	if !d.Equal(d.Round(AmountScale)) {
		return domain.Validation(fmt.Sprintf("amount must have at most %d decimal places", AmountScale))
	}
	if d.Abs().GreaterThanOrEqual(MaxMagnitude) {
		return domain.Validation("amount is out of range")
	}
	return nil
}

// Posting describes one signed balance change
type Posting struct {
	AccountID   string
	Amount      decimal.Decimal        // Positive credits, negative debits
	Type        domain.TransactionType // Direction, when set, must agree with the sign of Amount
	Description string
	Status      domain.TransactionStatus // Defaults to Completed

	AuditAction  string              // Defaults to "Transaction Added"
	AuditDetails func(*Result) string // Defaults to a balance summary
}

// Result reports the effect of an applied posting
type Result struct {
	AccountID     string          `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	CustomerName  string          `json:"customer_name"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	OldBalance    decimal.Decimal `json:"old_balance"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Description   string          `json:"-"`
}

// Ledger owns account balances
type Ledger struct {
	db    *gorm.DB
	ids   *ids.Allocator
	audit *audit.Writer
	now   func() time.Time
}

// New creates a Ledger
func New(db *gorm.DB, alloc *ids.Allocator, w *audit.Writer) *Ledger {
	return &Ledger{db: db, ids: alloc, audit: w, now: time.Now}
}

// ApplyDelta applies p in its own database transaction
func (l *Ledger) ApplyDelta(ctx context.Context, actor domain.Actor, p Posting) (*Result, error) {
	var res *Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = l.ApplyDeltaTx(tx, actor, p)
		return err
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": p.AccountID,
			"amount":     p.Amount.String(),
			"type":       p.Type.Label,
			"error":      err.Error(),
		}).Error("Ledger posting failed")
		return nil, domain.FromDB(err, "account not found")
	}
	logrus.WithFields(logrus.Fields{
		"account_id":     res.AccountID,
		"transaction_id": res.TransactionID,
		"amount":         p.Amount.String(),
		"type":           p.Type.Label,
		"new_balance":    res.NewBalance.String(),
		"actor":          actor.String(),
	}).Info("Ledger posting applied")
	return res, nil
}

// ApplyDeltaTx applies p inside tx. The caller owns commit and rollback, so a
// failure in any later step of the caller's unit also undoes the balance change.
func (l *Ledger) ApplyDeltaTx(tx *gorm.DB, actor domain.Actor, p Posting) (*Result, error) {
	if p.Amount.IsZero() {
		return nil, domain.Validation("amount must be non-zero")
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return nil, err
	}
	direction := domain.DirectionOf(p.Amount)
	if p.Type.Direction != "" && p.Type.Direction != direction {
		return nil, domain.Validation(fmt.Sprintf("%s cannot carry a %s amount", p.Type.Label, strings.ToLower(string(direction))))
	}
	if p.Status == "" {
		p.Status = domain.StatusCompleted
	}

	// Row lock serializes concurrent postings to the same account
	var account domain.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, "id = ?", p.AccountID).Error; err != nil {
		return nil, domain.FromDB(err, "account not found")
	}

	now := l.now()
	newBalance := account.Balance.Add(p.Amount)
	if newBalance.Abs().GreaterThanOrEqual(MaxMagnitude) {
		return nil, domain.Validation("resulting balance is out of range")
	}
	if err := tx.Model(&domain.Account{}).Where("id = ?", account.ID).
		Updates(map[string]any{"balance": newBalance, "updated_at": now}).Error; err != nil {
		return nil, domain.Storage("failed to update balance", err)
	}

	txnID, err := l.ids.Allocate(tx, ids.TransactionID)
	if err != nil {
		return nil, err
	}
	txn := domain.Transaction{
		ID:              txnID,
		AccountID:       account.ID,
		AccountNumber:   account.AccountNumber,
		CustomerName:    account.CustomerName,
		Type:            p.Type.Label,
		Kind:            p.Type.Kind,
		Direction:       direction,
		Amount:          p.Amount.Abs(),
		TransactionDate: now,
		Status:          p.Status,
		Description:     p.Description,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, domain.FromDB(err, "account not found")
	}

	res := &Result{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		CustomerName:  account.CustomerName,
		TransactionID: txnID,
		Amount:        p.Amount,
		OldBalance:    account.Balance,
		NewBalance:    newBalance,
		Description:   p.Description,
	}
	action, details := p.AuditAction, p.AuditDetails
	if action == "" {
		action = audit.ActionTransactionAdded
	}
	if details == nil {
		details = postingSummary(p.Type.Label)
	}
	if err := l.audit.Record(tx, actor, action, details(res)); err != nil {
		return nil, err
	}
	return res, nil
}

// AdjustBalance applies an administrator adjustment of amount to an account
func (l *Ledger) AdjustBalance(ctx context.Context, actor domain.Actor, accountID string, amount decimal.Decimal, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validation("invalid amount or missing reason")
	}
	if amount.IsZero() {
		return nil, domain.Validation("amount must be non-zero")
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.ApplyDelta(ctx, actor, Posting{
		AccountID:   accountID,
		Amount:      amount,
		Type:        domain.AdjustmentType(amount),
		Description: "Admin adjustment: " + reason,
		AuditAction: audit.ActionBalanceAdjusted,
		AuditDetails: func(r *Result) string {
			return fmt.Sprintf("Account: %s (ID: %s), Adjusted by: %s, Old Balance: %s, New Balance: %s, Reason: %s",
				r.AccountNumber, r.AccountID, Money(r.Amount), Money(r.OldBalance), Money(r.NewBalance), reason)
		},
	})
}

// ParseAmount parses a decimal amount supplied by a caller
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, domain.Validation("invalid amount or missing reason")
	}
	return d, nil
}

// Money formats an amount as dollars with two decimals
func Money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func postingSummary(label string) func(*Result) string {
	return func(r *Result) string {
		return fmt.Sprintf("%s of %s for Account: %s (Transaction: %s), Old Balance: %s, New Balance: %s, Description: %s",
			label, Money(r.Amount.Abs()), r.AccountNumber, r.TransactionID, Money(r.OldBalance), Money(r.NewBalance), r.Description)
	}
}
