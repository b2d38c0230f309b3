package api

import (
	"bank_backoffice/internal/domain" // Error kinds
	"bank_backoffice/internal/users"  // User lifecycle
	"bank_backoffice/internal/utils"  // Utility functions
	"net/http"                        // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(u *users.Coordinator, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := u.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			switch domain.KindOf(err) {
			case domain.KindInvalidState:
				// Known user, but deactivated
				c.JSON(http.StatusForbidden, gin.H{"error": "User is inactive"})
			case domain.KindStorage:
				respondError(c, err)
			default:
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			}
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User logged in")
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}
