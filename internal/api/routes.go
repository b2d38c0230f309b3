package api

import (
	"bank_backoffice/internal/audit"      // Audit writer
	"bank_backoffice/internal/ids"        // Identifier allocator
	"bank_backoffice/internal/ledger"     // Account ledger
	"bank_backoffice/internal/middleware" // Auth middleware
	"bank_backoffice/internal/query"      // Read side
	"bank_backoffice/internal/reversal"   // Transaction reversal
	"bank_backoffice/internal/users"      // User lifecycle
	"time"                                // Cache TTL

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Services bundles everything the handlers call
type Services struct {
	DB       *gorm.DB
	Users    *users.Coordinator
	Ledger   *ledger.Ledger
	Reversal *reversal.Service
	Query    *query.Service
}

// NewServices wires the core around one database. rdb may be nil.
func NewServices(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration) *Services {
	alloc := ids.NewAllocator() // One allocator per process
	writer := audit.NewWriter() // Audit log writer
	l := ledger.New(db, alloc, writer)
	return &Services{
		DB:       db,
		Users:    users.NewCoordinator(db, alloc, writer, l),
		Ledger:   l,
		Reversal: reversal.NewService(db, l),
		Query:    query.NewService(db, rdb, cacheTTL),
	}
}

// RegisterRoutes mounts the login endpoint and the admin API
func RegisterRoutes(r *gin.Engine, s *Services, jwtSecret string) {
	r.POST("/login", LoginHandler(s.Users, jwtSecret)) // Login endpoint

	// Admin routes (protected, active admin only)
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.JWTAuthMiddleware(jwtSecret), middleware.AdminOnlyMiddleware(s.DB))

	apiGroup.GET("/dashboard", DashboardHandler(s.Query))

	apiGroup.GET("/users", ListUsersHandler(s.Query))
	apiGroup.POST("/users", CreateUserHandler(s.Users, s.Query))
	apiGroup.GET("/users/:id", GetUserHandler(s.Query))
	apiGroup.PUT("/users/:id", UpdateUserHandler(s.Users, s.Query))
	apiGroup.DELETE("/users/:id", DeleteUserHandler(s.Users, s.Query))
	apiGroup.PUT("/users/:id/toggle_status", ToggleStatusHandler(s.Users, s.Query))

	apiGroup.GET("/accounts", ListAccountsHandler(s.Query))
	apiGroup.GET("/accounts/:id", GetAccountHandler(s.Query))
	apiGroup.PUT("/accounts/:id/adjust_balance", AdjustBalanceHandler(s.Ledger, s.Query))

	apiGroup.GET("/transactions", ListTransactionsHandler(s.Query))
	apiGroup.GET("/transactions/export", ExportTransactionsHandler(s.Query))
	apiGroup.GET("/transactions/:id", GetTransactionHandler(s.Query))
	apiGroup.PUT("/transactions/:id/reverse", ReverseTransactionHandler(s.Reversal, s.Query))

	apiGroup.GET("/audit_logs", ListAuditLogsHandler(s.Query))
}
