// Package reversal reverses completed transactions by posting a compensating
// entry and retiring the original.
package reversal

import (
	"bank_backoffice/internal/audit"
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/ledger"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reversedSuffix = " (Reversed by Admin)"

// Result reports a completed reversal
type Result struct {
	OriginalTransactionID string          `json:"original_transaction_id"`
	NewTransactionID      string          `json:"new_transaction_id"`
	AccountID             string          `json:"account_id"`
	Amount                decimal.Decimal `json:"amount"`
	OldBalance            decimal.Decimal `json:"old_balance"`
	NewBalance            decimal.Decimal `json:"new_balance"`
}

// Service reverses transactions through the ledger
type Service struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewService creates a Service
func NewService(db *gorm.DB, l *ledger.Ledger) *Service {
	return &Service{db: db, ledger: l}
}

// Compensation returns the posting type and signed amount that undo original.
// Adjustments and reversals cannot be reversed.
func Compensation(original *domain.Transaction) (domain.TransactionType, decimal.Decimal, error) {
	switch original.Kind {
	case domain.TxAdjustment, domain.TxReversal:
		return domain.TransactionType{}, decimal.Zero, domain.InvalidState("adjustments and reversals cannot be reversed")
	case domain.TxDeposit:
		return domain.TypeWithdrawalReversal, original.Amount.Neg(), nil
	case domain.TxWithdrawal:
		return domain.TypeDepositReversal, original.Amount, nil
	case domain.TxTransfer:
		return domain.TypeTransferReversal, original.Amount, nil
	}
	return domain.TransactionType{}, decimal.Zero, domain.InvalidState("cannot determine reversal type")
}

// Reverse retires transaction txnID and posts its compensating entry in one unit
func (s *Service) Reverse(ctx context.Context, actor domain.Actor, txnID string) (*Result, error) {
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original domain.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&original, "id = ?", txnID).Error; err != nil {
			return domain.FromDB(err, "transaction not found")
		}
		if !original.Status.CanTransition(domain.StatusReversed) {
			if original.Status.Terminal() {
				return domain.InvalidState(fmt.Sprintf("transaction is already %s", original.Status))
			}
			return domain.InvalidState("only Completed transactions can be reversed")
		}
		txnType, amount, err := Compensation(&original)
		if err != nil {
			return err
		}

		var owners int64
		if err := tx.Model(&domain.Account{}).Where("id = ?", original.AccountID).Count(&owners).Error; err != nil {
			return domain.Storage("failed to load account", err)
		}
		if owners == 0 {
			return domain.NotFound("account not found")
		}

		// Guarded on status so a concurrent reversal cannot also succeed
		update := tx.Model(&domain.Transaction{}).
			Where("id = ? AND status = ?", original.ID, domain.StatusCompleted).
			Updates(map[string]any{
				"status":      domain.StatusReversed,
				"description": original.Description + reversedSuffix,
			})
		if update.Error != nil {
			return domain.Storage("failed to update transaction", update.Error)
		}
		if update.RowsAffected == 0 {
			return domain.InvalidState("only Completed transactions can be reversed")
		}

		posted, err := s.ledger.ApplyDeltaTx(tx, actor, ledger.Posting{
			AccountID:   original.AccountID,
			Amount:      amount,
			Type:        txnType,
			Description: fmt.Sprintf("Reversal of TXN %s: %s", original.ID, original.Description),
			AuditAction: audit.ActionTxnReversed,
			AuditDetails: func(r *ledger.Result) string {
				return fmt.Sprintf("Reversed Transaction ID: %s (Type: %s, Amount: %s) for Account: %s. New Transaction ID: %s, Old Balance: %s, New Balance: %s",
					original.ID, original.Type, ledger.Money(original.Amount), r.AccountNumber, r.TransactionID, ledger.Money(r.OldBalance), ledger.Money(r.NewBalance))
			},
		})
		if err != nil {
			return err
		}
		res = &Result{
			OriginalTransactionID: original.ID,
			NewTransactionID:      posted.TransactionID,
			AccountID:             posted.AccountID,
			Amount:                amount,
			OldBalance:            posted.OldBalance,
			NewBalance:            posted.NewBalance,
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"transaction_id": txnID,
			"error":          err.Error(),
		}).Warn("Transaction reversal rejected")
		return nil, domain.FromDB(err, "transaction not found")
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id":     txnID,
		"new_transaction_id": res.NewTransactionID,
		"new_balance":        res.NewBalance.String(),
		"actor":              actor.String(),
	}).Info("Transaction reversed")
	return res, nil
}
