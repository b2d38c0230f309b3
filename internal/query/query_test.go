package query

import (
	"bank_backoffice/internal/db"
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/utils"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T, withRedis bool) (*gorm.DB, *Service) {
	t.Helper()
	database, err := db.NewTestDB()
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, db.Seed(database))

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}
	svc := NewService(database, rdb, time.Minute)
	svc.loc = time.UTC
	svc.now = func() time.Time { return time.Date(2025, 7, 21, 15, 0, 0, 0, time.UTC) }
	return database, svc
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

func txnID(t domain.Transaction) string { return t.ID }

func TestListTransactions(t *testing.T) {
	_, svc := setup(t, false)

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{"all newest first", TransactionFilter{}, []string{"T007", "T006", "T005", "T004", "T003", "T002", "T001"}},
		{"by account", TransactionFilter{AccountID: "A002"}, []string{"T006", "T003"}},
		{"by type", TransactionFilter{Type: "Withdrawal"}, []string{"T006", "T005", "T002"}},
		{"start date", TransactionFilter{StartDate: "2025-07-21"}, []string{"T007", "T006", "T005", "T004"}},
		{"end date includes whole day", TransactionFilter{EndDate: "2025-07-20"}, []string{"T003", "T002", "T001"}},
		{"date range", TransactionFilter{StartDate: "2025-07-20", EndDate: "2025-07-20"}, []string{"T003", "T002"}},
		{"search description", TransactionFilter{Search: "ATM"}, []string{"T002"}},
		{"search customer", TransactionFilter{Search: "charlie"}, []string{"T005"}},
		{"paged", TransactionFilter{Paging: Paging{Page: 2, PageSize: 3}}, []string{"T004", "T003", "T002"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListTransactions(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page.Transactions, txnID))
			assert.False(t, page.Cached)
		})
	}
}

func TestListTransactions_BadDate(t *testing.T) {
	_, svc := setup(t, false)

	_, err := svc.ListTransactions(context.Background(), TransactionFilter{StartDate: "21/07/2025"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.Transactions(context.Background(), TransactionFilter{EndDate: "yesterday"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestTransactions_ExportLimit(t *testing.T) {
	_, svc := setup(t, false)
	ctx := context.Background()

	svc.maxExport = 7
	txns, err := svc.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 7)

	svc.maxExport = 3
	_, err = svc.Transactions(ctx, TransactionFilter{})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	txns, err = svc.Transactions(ctx, TransactionFilter{AccountID: "A002"})
	require.NoError(t, err)
	assert.Equal(t, []string{"T006", "T003"}, ids(txns, txnID))
}

func TestListUsersAndAccounts(t *testing.T) {
	_, svc := setup(t, false)
	ctx := context.Background()

	users, err := svc.ListUsers(ctx, "", Paging{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), users.Total)
	assert.Equal(t, DefaultPageSize, users.PageSize)
	assert.Equal(t, 1, users.TotalPages)

	users, err = svc.ListUsers(ctx, "BOB.J", Paging{})
	require.NoError(t, err)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "U002", users.Users[0].ID)

	users, err = svc.ListUsers(ctx, "u00", Paging{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), users.Total)
	assert.Equal(t, 3, users.TotalPages)
	assert.Len(t, users.Users, 2)

	accounts, err := svc.ListAccounts(ctx, "alice", Paging{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), accounts.Total)

	accounts, err = svc.ListAccounts(ctx, "100010003", Paging{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, accounts.Accounts, 1)
	assert.Equal(t, DefaultPageSize, accounts.PageSize, "oversized pages fall back to the default")
}

func TestGet(t *testing.T) {
	_, svc := setup(t, false)
	ctx := context.Background()

	user, err := svc.GetUser(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", user.Name)

	account, err := svc.GetAccount(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("5000.75")))

	txn, err := svc.GetTransaction(ctx, "T002")
	require.NoError(t, err)
	assert.Equal(t, domain.Debit, txn.Direction)

	_, err = svc.GetUser(ctx, "U404")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	_, err = svc.GetAccount(ctx, "A404")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	_, err = svc.GetTransaction(ctx, "T404")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDashboard(t *testing.T) {
	database, svc := setup(t, false)
	require.NoError(t, database.Create(&domain.Transaction{
		ID: "T008", AccountID: "A002", AccountNumber: "100010002", CustomerName: "Bob Johnson",
		Type: domain.LabelTransfer, Kind: domain.TxTransfer, Direction: domain.Debit,
		Amount: decimal.RequireFromString("40"), TransactionDate: time.Date(2025, 7, 21, 14, 0, 0, 0, time.UTC),
		Status: domain.StatusCompleted, Description: "Transfer out",
	}).Error)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.TotalCustomers)
	assert.Equal(t, int64(4), d.TotalAccounts)
	assert.Equal(t, int64(5), d.TransactionsToday)
	// Completed deposits T001, T003, T004; the pending T007 is excluded
	assert.True(t, d.TotalDeposits.Equal(decimal.RequireFromString("2000")), "deposits %s", d.TotalDeposits)
	// Completed withdrawals T002, T005, T006; the transfer is excluded
	assert.True(t, d.TotalWithdrawals.Equal(decimal.RequireFromString("350")), "withdrawals %s", d.TotalWithdrawals)
}

func TestCache_HitAndInvalidate(t *testing.T) {
	database, svc := setup(t, true)
	ctx := context.Background()

	first, err := svc.ListAccounts(ctx, "", Paging{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.ListAccounts(ctx, "", Paging{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Total, second.Total)
	require.Len(t, second.Accounts, len(first.Accounts))
	assert.True(t, second.Accounts[0].Balance.Equal(first.Accounts[0].Balance))

	require.NoError(t, database.Delete(&domain.Account{}, "id = ?", "A003").Error)
	stale, err := svc.ListAccounts(ctx, "", Paging{})
	require.NoError(t, err)
	assert.True(t, stale.Cached)
	assert.Equal(t, int64(4), stale.Total)

	svc.Invalidate(ctx)
	fresh, err := svc.ListAccounts(ctx, "", Paging{})
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.Equal(t, int64(3), fresh.Total)
}

func TestCache_UndecodableEntryIsReplaced(t *testing.T) {
	_, svc := setup(t, true)
	ctx := context.Background()

	key := utils.CacheKey(ctx, svc.rdb, "accounts", "search=", Paging{}.normalize().key())
	require.NoError(t, svc.rdb.Set(ctx, key, "{not json", time.Minute).Err())

	page, err := svc.ListAccounts(ctx, "", Paging{})
	require.NoError(t, err)
	assert.False(t, page.Cached)
	assert.Equal(t, int64(4), page.Total)

	page, err = svc.ListAccounts(ctx, "", Paging{})
	require.NoError(t, err)
	assert.True(t, page.Cached)
	assert.Equal(t, int64(4), page.Total)
}

func TestListAuditLogs(t *testing.T) {
	_, svc := setup(t, true)
	ctx := context.Background()

	page, err := svc.ListAuditLogs(ctx, "", Paging{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "Account Balance Adjusted", page.Logs[0].ActionType)

	page, err = svc.ListAuditLogs(ctx, "bob", Paging{})
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, "User Activated", page.Logs[0].ActionType)
}
