package api

import (
	"bank_backoffice/internal/ledger"   // Account ledger
	"bank_backoffice/internal/query"    // Read side and cache
	"bank_backoffice/internal/reversal" // Transaction reversal
	"net/http"                          // HTTP status codes
	"strings"                           // String manipulation

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal amounts
)

// AdjustBalanceRequest is the body of PUT /api/accounts/:id/adjust_balance
type AdjustBalanceRequest struct {
	Amount *decimal.Decimal `json:"amount"` // Signed adjustment, required
	Reason string           `json:"reason"` // Required
}

// AdjustBalanceHandler applies an administrator adjustment to an account
func AdjustBalanceHandler(l *ledger.Ledger, q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		var req AdjustBalanceRequest
		// Amount must be numeric and present, reason non-empty
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil || strings.TrimSpace(req.Reason) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount or missing reason"})
			return
		}
		res, err := l.AdjustBalance(c.Request.Context(), actor, c.Param("id"), *req.Amount, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		q.Invalidate(c.Request.Context()) // Balances and dashboard changed
		c.JSON(http.StatusOK, gin.H{
			"message":        "Balance adjusted successfully.",
			"transaction_id": res.TransactionID,
			"old_balance":    res.OldBalance,
			"new_balance":    res.NewBalance,
		})
	}
}

// ReverseTransactionHandler reverses a completed transaction
func ReverseTransactionHandler(r *reversal.Service, q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		res, err := r.Reverse(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		q.Invalidate(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"message":            "Transaction reversed successfully.",
			"new_transaction_id": res.NewTransactionID,
			"new_balance":        res.NewBalance,
		})
	}
}
