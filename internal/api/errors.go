package api

import (
	"bank_backoffice/internal/domain"     // Error kinds
	"bank_backoffice/internal/middleware" // Acting admin
	"bank_backoffice/internal/query"      // Paging
	"net/http"                            // HTTP status codes
	"strconv"                             // String conversion

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusOf maps an error kind to an HTTP status
func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidState:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": message}
func respondError(c *gin.Context, err error) {
	status := statusOf(domain.KindOf(err))
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method, // Request method
			"path":   c.FullPath(),     // Route pattern
			"error":  err.Error(),      // Full error chain
		}).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": domain.MessageOf(err)})
}

// actorOf returns the acting admin, aborting the request when it is missing
func actorOf(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return actor, ok
}

// pagingOf reads page and page_size query parameters
func pagingOf(c *gin.Context) query.Paging {
	p := query.Paging{Page: 1, PageSize: query.DefaultPageSize} // Defaults
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v // Set page if valid
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= query.MaxPageSize {
		p.PageSize = v // Set page size within limits
	}
	return p
}
