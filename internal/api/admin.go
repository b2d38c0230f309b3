package api

import (
	"bank_backoffice/internal/export" // Report rendering
	"bank_backoffice/internal/query"  // Read side and cache
	"bytes"                           // Report buffer
	"net/http"                        // HTTP status codes
	"time"                            // Report timestamps

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// DashboardHandler returns the headline metrics
func DashboardHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := q.Dashboard(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// ListUsersHandler returns a page of users, filtered by the search parameter
func ListUsersHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := q.ListUsers(c.Request.Context(), c.Query("search"), pagingOf(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetUserHandler returns one user
func GetUserHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := q.GetUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// ListAccountsHandler returns a page of accounts, filtered by the search parameter
func ListAccountsHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := q.ListAccounts(c.Request.Context(), c.Query("search"), pagingOf(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetAccountHandler returns one account
func GetAccountHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := q.GetAccount(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

// transactionFilterOf reads the transaction filters from the query string
func transactionFilterOf(c *gin.Context) query.TransactionFilter {
	return query.TransactionFilter{
		AccountID: c.Query("account_id"), // Owning account
		Type:      c.Query("type"),       // Type label
		StartDate: c.Query("start_date"), // YYYY-MM-DD
		EndDate:   c.Query("end_date"),   // YYYY-MM-DD, inclusive
		Search:    c.Query("search"),     // Free text
		Paging:    pagingOf(c),
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by account, type, date or text
func ListTransactionsHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := q.ListTransactions(c.Request.Context(), transactionFilterOf(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetTransactionHandler returns one transaction
func GetTransactionHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn, err := q.GetTransaction(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

// ExportTransactionsHandler streams the filtered transactions as a PDF or XLSX report
func ExportTransactionsHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		format, err := export.ParseFormat(c.DefaultQuery("format", "pdf"))
		if err != nil {
			respondError(c, err)
			return
		}
		txns, err := q.Transactions(c.Request.Context(), transactionFilterOf(c))
		if err != nil {
			respondError(c, err)
			return
		}
		var buf bytes.Buffer // Rendered fully so failures still get a JSON error
		if err := export.Write(&buf, format, txns); err != nil {
			logrus.WithFields(logrus.Fields{"format": format, "error": err.Error()}).Error("Report rendering failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+format.FileName(time.Now())+`"`)
		c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
	}
}

// ListAuditLogsHandler returns a page of audit entries, filtered by the search parameter
func ListAuditLogsHandler(q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := q.ListAuditLogs(c.Request.Context(), c.Query("search"), pagingOf(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}
