// Package query serves the read side of the back office. Listings are cached
// in Redis when a client is configured.
package query

import (
	"bank_backoffice/internal/audit"
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/utils"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Default and maximum page sizes
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// MaxExportRows caps the transactions a single report may hold
const MaxExportRows = 10000

// Service answers read queries
type Service struct {
	db  *gorm.DB
	rdb *redis.Client // nil disables caching
	ttl time.Duration
	now func() time.Time
	loc *time.Location // Zone of date filters

	maxExport int
}

// NewService creates a Service
func NewService(db *gorm.DB, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{db: db, rdb: rdb, ttl: ttl, now: time.Now, loc: time.Local, maxExport: MaxExportRows}
}

// Paging is the page window shared by all listings
type Paging struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p Paging) normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		p.PageSize = DefaultPageSize
	}
	return p
}

func (p Paging) offset() int { return (p.Page - 1) * p.PageSize }

func (p Paging) key() string { return fmt.Sprintf("page=%d:size=%d", p.Page, p.PageSize) }

func totalPages(total int64, size int) int {
	return (int(total) + size - 1) / size
}

// UserPage is one page of users
type UserPage struct {
	Users      []domain.User `json:"users"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"total_pages"`
	Cached     bool          `json:"cached"`
}

// AccountPage is one page of accounts
type AccountPage struct {
	Accounts   []domain.Account `json:"accounts"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
	Cached     bool             `json:"cached"`
}

// TransactionPage is one page of transactions
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Total        int64                `json:"total"`
	TotalPages   int                  `json:"total_pages"`
	Cached       bool                 `json:"cached"`
}

// TransactionFilter narrows a transaction listing. Dates are YYYY-MM-DD and
// EndDate includes the whole day.
type TransactionFilter struct {
	AccountID string
	Type      string
	StartDate string
	EndDate   string
	Search    string
	Paging
}

// Dashboard holds the headline metrics
type Dashboard struct {
	TotalCustomers    int64           `json:"total_customers"`
	TotalAccounts     int64           `json:"total_accounts"`
	TransactionsToday int64           `json:"transactions_today"`
	TotalDeposits     decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals  decimal.Decimal `json:"total_withdrawals"`
	Cached            bool            `json:"cached"`
}

func like(s string) string { return "%" + strings.ToLower(strings.TrimSpace(s)) + "%" }

// cached fills dest from Redis, or runs load and stores the result
func (s *Service) cached(ctx context.Context, dest any, load func() error, parts ...string) (bool, error) {
	key := utils.CacheKey(ctx, s.rdb, parts...)
	found, err := utils.GetCache(ctx, s.rdb, key, dest)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
		if found {
			// Undecodable entry, dropped even when the reload fails
			if err := utils.DeleteCache(ctx, s.rdb, key); err != nil {
				logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache delete failed")
			}
		}
	}
	if err == nil && found {
		return true, nil
	}
	if err := load(); err != nil {
		return false, err
	}
	if err := utils.SetCache(ctx, s.rdb, key, dest, s.ttl); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
	return false, nil
}

// Invalidate drops every cached listing. Call after a committed mutation.
func (s *Service) Invalidate(ctx context.Context) {
	if err := utils.BumpCache(ctx, s.rdb); err != nil {
		logrus.WithError(err).Warn("Cache invalidation failed")
	}
}

// ListUsers returns users newest first, matching search against name, email and id
func (s *Service) ListUsers(ctx context.Context, search string, p Paging) (*UserPage, error) {
	p = p.normalize()
	out := &UserPage{}
	hit, err := s.cached(ctx, out, func() error {
		q := s.db.WithContext(ctx).Model(&domain.User{})
		if strings.TrimSpace(search) != "" {
			l := like(search)
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(id) LIKE ?", l, l, l)
		}
		q = q.Session(&gorm.Session{})
		if err := q.Count(&out.Total).Error; err != nil {
			return domain.Storage("failed to count users", err)
		}
		if err := q.Order("created_at desc").Offset(p.offset()).Limit(p.PageSize).Find(&out.Users).Error; err != nil {
			return domain.Storage("failed to fetch users", err)
		}
		out.Page, out.PageSize, out.TotalPages = p.Page, p.PageSize, totalPages(out.Total, p.PageSize)
		return nil
	}, "users", "search="+strings.ToLower(search), p.key())
	if err != nil {
		return nil, err
	}
	out.Cached = hit
	return out, nil
}

// GetUser returns user id
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, domain.FromDB(err, "user not found")
	}
	return &user, nil
}

// ListAccounts returns accounts newest first, matching search against the
// account number and customer name
func (s *Service) ListAccounts(ctx context.Context, search string, p Paging) (*AccountPage, error) {
	p = p.normalize()
	out := &AccountPage{}
	hit, err := s.cached(ctx, out, func() error {
		q := s.db.WithContext(ctx).Model(&domain.Account{})
		if strings.TrimSpace(search) != "" {
			l := like(search)
			q = q.Where("LOWER(account_number) LIKE ? OR LOWER(customer_name) LIKE ?", l, l)
		}
		q = q.Session(&gorm.Session{})
		if err := q.Count(&out.Total).Error; err != nil {
			return domain.Storage("failed to count accounts", err)
		}
		if err := q.Order("created_at desc").Offset(p.offset()).Limit(p.PageSize).Find(&out.Accounts).Error; err != nil {
			return domain.Storage("failed to fetch accounts", err)
		}
		out.Page, out.PageSize, out.TotalPages = p.Page, p.PageSize, totalPages(out.Total, p.PageSize)
		return nil
	}, "accounts", "search="+strings.ToLower(search), p.key())
	if err != nil {
		return nil, err
	}
	out.Cached = hit
	return out, nil
}

// GetAccount returns account id
func (s *Service) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, domain.FromDB(err, "account not found")
	}
	return &account, nil
}

func (s *Service) transactionQuery(ctx context.Context, f TransactionFilter) (*gorm.DB, error) {
	q := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.StartDate != "" {
		start, err := time.ParseInLocation(time.DateOnly, f.StartDate, s.loc)
		if err != nil {
			return nil, domain.Validation("start_date must be YYYY-MM-DD")
		}
		q = q.Where("transaction_date >= ?", start)
	}
	if f.EndDate != "" {
		end, err := time.ParseInLocation(time.DateOnly, f.EndDate, s.loc)
		if err != nil {
			return nil, domain.Validation("end_date must be YYYY-MM-DD")
		}
		q = q.Where("transaction_date < ?", end.AddDate(0, 0, 1))
	}
	if strings.TrimSpace(f.Search) != "" {
		l := like(f.Search)
		q = q.Where("(LOWER(account_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(description) LIKE ?)", l, l, l)
	}
	return q.Session(&gorm.Session{}), nil
}

// ListTransactions returns transactions newest first
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	f.Paging = f.Paging.normalize()
	q, err := s.transactionQuery(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &TransactionPage{}
	hit, err := s.cached(ctx, out, func() error {
		if err := q.Count(&out.Total).Error; err != nil {
			return domain.Storage("failed to count transactions", err)
		}
		if err := q.Order("transaction_date desc").Offset(f.offset()).Limit(f.PageSize).Find(&out.Transactions).Error; err != nil {
			return domain.Storage("failed to fetch transactions", err)
		}
		out.Page, out.PageSize, out.TotalPages = f.Page, f.PageSize, totalPages(out.Total, f.PageSize)
		return nil
	}, "txs", "account="+f.AccountID, "type="+f.Type, "from="+f.StartDate, "to="+f.EndDate,
		"search="+strings.ToLower(f.Search), f.Paging.key())
	if err != nil {
		return nil, err
	}
	out.Cached = hit
	return out, nil
}

// Transactions returns every transaction matching f, newest first, for reports.
// Matching more than MaxExportRows is a validation error rather than a cut-off report.
func (s *Service) Transactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	q, err := s.transactionQuery(ctx, f)
	if err != nil {
		return nil, err
	}
	var txns []domain.Transaction
	if err := q.Order("transaction_date desc").Limit(s.maxExport + 1).Find(&txns).Error; err != nil {
		return nil, domain.Storage("failed to fetch transactions", err)
	}
	if len(txns) > s.maxExport {
		return nil, domain.Validation(fmt.Sprintf("report exceeds %d transactions, narrow the filters", s.maxExport))
	}
	return txns, nil
}

// GetTransaction returns transaction id
func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := s.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, domain.FromDB(err, "transaction not found")
	}
	return &txn, nil
}

// ListAuditLogs returns audit entries newest first
func (s *Service) ListAuditLogs(ctx context.Context, search string, p Paging) (*audit.Page, error) {
	p = p.normalize()
	page := &audit.Page{}
	_, err := s.cached(ctx, page, func() error {
		res, err := audit.List(ctx, s.db, audit.Filter{Search: search, Page: p.Page, PageSize: p.PageSize})
		if err != nil {
			return err
		}
		*page = *res
		return nil
	}, "audit", "search="+strings.ToLower(search), p.key())
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Dashboard computes the headline metrics. Deposits sum completed credits;
// withdrawals sum completed debits other than transfers.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	out := &Dashboard{}
	hit, err := s.cached(ctx, out, func() error {
		db := s.db.WithContext(ctx)
		if err := db.Model(&domain.User{}).Where("role = ?", domain.RoleCustomer).Count(&out.TotalCustomers).Error; err != nil {
			return domain.Storage("failed to count customers", err)
		}
		if err := db.Model(&domain.Account{}).Count(&out.TotalAccounts).Error; err != nil {
			return domain.Storage("failed to count accounts", err)
		}
		now := s.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if err := db.Model(&domain.Transaction{}).
			Where("transaction_date >= ? AND transaction_date < ?", today, today.AddDate(0, 0, 1)).
			Count(&out.TransactionsToday).Error; err != nil {
			return domain.Storage("failed to count transactions", err)
		}
		var err error
		if out.TotalDeposits, err = s.sum(db.Where("direction = ?", domain.Credit)); err != nil {
			return err
		}
		out.TotalWithdrawals, err = s.sum(db.Where("direction = ? AND kind <> ?", domain.Debit, domain.TxTransfer))
		return err
	}, "dashboard", s.now().Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	out.Cached = hit
	return out, nil
}

func (s *Service) sum(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := q.Model(&domain.Transaction{}).Where("status = ?", domain.StatusCompleted).Select("SUM(amount)").Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, domain.Storage("failed to sum transactions", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}
