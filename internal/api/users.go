package api

import (
	"bank_backoffice/internal/domain" // Domain models
	"bank_backoffice/internal/query"  // Read side and cache
	"bank_backoffice/internal/users"  // User lifecycle
	"fmt"                             // Message formatting
	"net/http"                        // HTTP status codes

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal amounts
)

// CreateUserRequest is the body of POST /api/users
type CreateUserRequest struct {
	Name           string          `json:"name"`            // Display name
	Email          string          `json:"email"`           // Unique email
	Password       string          `json:"password"`        // Plain credential, hashed before storage
	Role           string          `json:"role"`            // Customer, Staff or Admin
	AccountType    string          `json:"account_type"`    // Optional, Savings by default
	InitialBalance decimal.Decimal `json:"initial_balance"` // Optional opening deposit for customers
}

// UpdateUserRequest is the body of PUT /api/users/:id. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// StatusRequest is the body of PUT /api/users/:id/toggle_status
type StatusRequest struct {
	Status string `json:"status"`
}

// CreateUserHandler adds a user and, for customers, their first account
func CreateUserHandler(u *users.Coordinator, q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := u.Create(c.Request.Context(), actor, users.CreateInput{
			Name:           req.Name,
			Email:          req.Email,
			Password:       req.Password,
			Role:           domain.Role(req.Role),
			AccountType:    domain.AccountType(req.AccountType),
			InitialBalance: req.InitialBalance,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		q.Invalidate(c.Request.Context()) // Listings changed
		c.JSON(http.StatusCreated, gin.H{
			"message":        fmt.Sprintf("User %q added successfully.", req.Name),
			"user_id":        res.UserID,
			"account_id":     res.AccountID,
			"account_number": res.AccountNumber,
			"transaction_id": res.TransactionID,
		})
	}
}

// UpdateUserHandler applies changed fields to a user
func UpdateUserHandler(u *users.Coordinator, q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := u.Update(c.Request.Context(), actor, c.Param("id"), users.UpdateInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     domain.Role(req.Role),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if res.Changed {
			q.Invalidate(c.Request.Context())
		}
		c.JSON(http.StatusOK, res)
	}
}

// DeleteUserHandler removes a user with all accounts and transactions
func DeleteUserHandler(u *users.Coordinator, q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		id := c.Param("id")
		if err := u.Delete(c.Request.Context(), actor, id); err != nil {
			respondError(c, err)
			return
		}
		q.Invalidate(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User %s and associated data deleted.", id)})
	}
}

// ToggleStatusHandler sets a user Active or Inactive
func ToggleStatusHandler(u *users.Coordinator, q *query.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := u.SetStatus(c.Request.Context(), actor, c.Param("id"), domain.UserStatus(req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		if res.Changed {
			q.Invalidate(c.Request.Context())
		}
		c.JSON(http.StatusOK, res)
	}
}
