package ledger

import (
	"bank_backoffice/internal/audit"
	"bank_backoffice/internal/config"
	"bank_backoffice/internal/db"
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/ids"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var admin = domain.Actor{ID: "U005", Name: "Admin User"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*gorm.DB, *Ledger) {
	t.Helper()
	database, err := db.NewTestDB()
	require.NoError(t, err, "failed to open test database")
	return database, seedAccount(t, database)
}

func seedAccount(t *testing.T, database *gorm.DB) *Ledger {
	t.Helper()
	require.NoError(t, database.Create(&domain.User{
		ID: "U001", Name: "Alice Smith", Email: "alice.s@example.com", PasswordHash: "x",
		Role: domain.RoleCustomer, Status: domain.UserActive,
	}).Error)
	require.NoError(t, database.Create(&domain.Account{
		ID: "A001", UserID: "U001", AccountNumber: "100010001", CustomerName: "Alice Smith",
		AccountType: domain.AccountSavings, Balance: dec("100.00"), Status: domain.AccountActive,
	}).Error)
	return New(database, ids.NewAllocator(), audit.NewWriter())
}

func balanceOf(t *testing.T, database *gorm.DB, accountID string) decimal.Decimal {
	t.Helper()
	var account domain.Account
	require.NoError(t, database.First(&account, "id = ?", accountID).Error)
	return account.Balance
}

func count(t *testing.T, database *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.Model(model).Count(&n).Error)
	return n
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name          string
		amount        string
		txnType       domain.TransactionType
		wantBalance   string
		wantDirection domain.Direction
	}{
		{"credit", "25.50", domain.TypeDeposit, "125.50", domain.Credit},
		{"debit", "-40", domain.TypeWithdrawal, "60.00", domain.Debit},
		{"overdraft allowed", "-250", domain.TypeWithdrawal, "-150.00", domain.Debit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, l := setup(t)

			res, err := l.ApplyDelta(context.Background(), admin, Posting{
				AccountID:   "A001",
				Amount:      dec(tt.amount),
				Type:        tt.txnType,
				Description: "teller",
			})
			require.NoError(t, err)

			assert.True(t, res.OldBalance.Equal(dec("100")), "old balance %s", res.OldBalance)
			assert.True(t, res.NewBalance.Equal(dec(tt.wantBalance)), "new balance %s", res.NewBalance)
			assert.True(t, balanceOf(t, database, "A001").Equal(dec(tt.wantBalance)))

			var txn domain.Transaction
			require.NoError(t, database.First(&txn, "id = ?", res.TransactionID).Error)
			assert.Equal(t, "A001", txn.AccountID)
			assert.Equal(t, "100010001", txn.AccountNumber)
			assert.Equal(t, "Alice Smith", txn.CustomerName)
			assert.Equal(t, tt.txnType.Label, txn.Type)
			assert.Equal(t, tt.txnType.Kind, txn.Kind)
			assert.Equal(t, tt.wantDirection, txn.Direction)
			assert.True(t, txn.Amount.Equal(dec(tt.amount).Abs()), "amount is stored as magnitude")
			assert.Equal(t, domain.StatusCompleted, txn.Status)
			assert.Equal(t, "teller", txn.Description)

			var logs []domain.AuditLog
			require.NoError(t, database.Find(&logs).Error)
			require.Len(t, logs, 1)
			assert.Equal(t, audit.ActionTransactionAdded, logs[0].ActionType)
			assert.Contains(t, logs[0].ActionDetails, "Old Balance: $100.00")
			assert.Contains(t, logs[0].ActionDetails, "teller")
		})
	}
}

func TestApplyDelta_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		posting  Posting
		wantKind domain.ErrorKind
	}{
		{"unknown account", Posting{AccountID: "A404", Amount: dec("5"), Type: domain.TypeDeposit}, domain.KindNotFound},
		{"zero amount", Posting{AccountID: "A001", Amount: decimal.Zero, Type: domain.TypeDeposit}, domain.KindValidation},
		{"sign disagrees with type", Posting{AccountID: "A001", Amount: dec("-5"), Type: domain.TypeDeposit}, domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, l := setup(t)

			res, err := l.ApplyDelta(context.Background(), admin, tt.posting)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))

			assert.True(t, balanceOf(t, database, "A001").Equal(dec("100")))
			assert.Zero(t, count(t, database, &domain.Transaction{}))
			assert.Zero(t, count(t, database, &domain.AuditLog{}))
		})
	}
}

func TestApplyDelta_RollsBackWhenAuditFails(t *testing.T) {
	database, l := setup(t)
	require.NoError(t, database.Migrator().DropTable(&domain.AuditLog{}))

	_, err := l.ApplyDelta(context.Background(), admin, Posting{AccountID: "A001", Amount: dec("10"), Type: domain.TypeDeposit})
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	assert.True(t, balanceOf(t, database, "A001").Equal(dec("100")), "balance must be rolled back")
	assert.Zero(t, count(t, database, &domain.Transaction{}), "transaction must be rolled back")
}

func TestApplyDeltaTx_RollsBackWithCallerUnit(t *testing.T) {
	database, l := setup(t)

	err := database.Transaction(func(tx *gorm.DB) error {
		if _, err := l.ApplyDeltaTx(tx, admin, Posting{AccountID: "A001", Amount: dec("10"), Type: domain.TypeDeposit}); err != nil {
			return err
		}
		return errors.New("caller failed afterwards")
	})
	require.Error(t, err)

	assert.True(t, balanceOf(t, database, "A001").Equal(dec("100")))
	assert.Zero(t, count(t, database, &domain.Transaction{}))
	assert.Zero(t, count(t, database, &domain.AuditLog{}))
}

func TestApplyDelta_BalanceEqualsSumOfDeltas(t *testing.T) {
	database, l := setup(t)
	require.NoError(t, database.Model(&domain.Account{}).Where("id = ?", "A001").Update("balance", decimal.Zero).Error)

	deltas := []string{"100", "-30.25", "12.10", "-500", "0.15"}
	sum := decimal.Zero
	for _, d := range deltas {
		amount := dec(d)
		sum = sum.Add(amount)
		_, err := l.ApplyDelta(context.Background(), admin, Posting{AccountID: "A001", Amount: amount, Type: domain.AdjustmentType(amount)})
		require.NoError(t, err)
	}

	assert.True(t, balanceOf(t, database, "A001").Equal(sum), "balance %s, sum %s", balanceOf(t, database, "A001"), sum)
	assert.Equal(t, int64(len(deltas)), count(t, database, &domain.Transaction{}))
	assert.Equal(t, int64(len(deltas)), count(t, database, &domain.AuditLog{}))
}

func TestApplyDelta_ConcurrentPostingsOnSameAccount(t *testing.T) {
	database, l := setup(t)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyDelta(context.Background(), admin, Posting{AccountID: "A001", Amount: dec("10"), Type: domain.TypeDeposit})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, balanceOf(t, database, "A001").Equal(dec("200")))
	assert.Equal(t, int64(workers), count(t, database, &domain.Transaction{}))
}

func TestApplyDelta_ConcurrentPostingsOnFileDatabase(t *testing.T) {
	cfg := &config.Config{DBDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "bank.db")}
	database, err := db.Open(cfg)
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(database))
	l := seedAccount(t, database)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.AdjustBalance(context.Background(), admin, "A001", dec("1"), "Load test")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, balanceOf(t, database, "A001").Equal(dec("120")), "balance %s", balanceOf(t, database, "A001"))
	assert.Equal(t, int64(workers), count(t, database, &domain.Transaction{}))
}

func TestApplyDelta_RejectsAmountsOutsideColumnPrecision(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"sub-cent credit", "0.001"},
		{"sub-cent debit", "-10.005"},
		{"too large", "12345678901234567.89"},
		{"at the bound", "10000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, l := setup(t)

			_, err := l.AdjustBalance(context.Background(), admin, "A001", dec(tt.amount), "Rounding")
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			_, err = l.ApplyDelta(context.Background(), admin, Posting{AccountID: "A001", Amount: dec(tt.amount)})
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))

			assert.True(t, balanceOf(t, database, "A001").Equal(dec("100.00")))
			assert.Zero(t, count(t, database, &domain.Transaction{}))
			assert.Zero(t, count(t, database, &domain.AuditLog{}))
		})
	}
}

func TestApplyDelta_RejectsBalanceOutOfRange(t *testing.T) {
	database, l := setup(t)

	res, err := l.AdjustBalance(context.Background(), admin, "A001", dec("9999999999899.99"), "Large deposit")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(dec("9999999999999.99")))
	assert.True(t, balanceOf(t, database, "A001").Equal(res.NewBalance), "stored balance matches the returned one")

	_, err = l.AdjustBalance(context.Background(), admin, "A001", dec("0.01"), "Overflow")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.True(t, balanceOf(t, database, "A001").Equal(dec("9999999999999.99")))
	assert.Equal(t, int64(1), count(t, database, &domain.Transaction{}))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(dec("0.01")))
	assert.NoError(t, ValidateAmount(dec("-9999999999999.99")))
	assert.NoError(t, ValidateAmount(dec("12.300")), "trailing zeros are still two places")
	assert.Equal(t, domain.KindValidation, domain.KindOf(ValidateAmount(dec("0.001"))))
	assert.Equal(t, domain.KindValidation, domain.KindOf(ValidateAmount(dec("-10000000000000"))))
}

func TestAdjustBalance(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		wantLabel   string
		wantBalance string
	}{
		{"positive adjustment", "5.00", domain.LabelDepositAdjustment, "105.00"},
		{"negative adjustment", "-7.25", domain.LabelWithdrawalAdjustment, "92.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, l := setup(t)

			res, err := l.AdjustBalance(context.Background(), admin, "A001", dec(tt.amount), "Error correction")
			require.NoError(t, err)
			assert.True(t, res.NewBalance.Equal(dec(tt.wantBalance)))

			var txn domain.Transaction
			require.NoError(t, database.First(&txn, "id = ?", res.TransactionID).Error)
			assert.Equal(t, tt.wantLabel, txn.Type)
			assert.Equal(t, domain.TxAdjustment, txn.Kind)
			assert.Equal(t, "Admin adjustment: Error correction", txn.Description)

			var entry domain.AuditLog
			require.NoError(t, database.First(&entry).Error)
			assert.Equal(t, audit.ActionBalanceAdjusted, entry.ActionType)
			assert.Equal(t, "Admin User (U005)", entry.AdminUser)
			assert.Contains(t, entry.ActionDetails, "Account: 100010001 (ID: A001)")
			assert.Contains(t, entry.ActionDetails, "Reason: Error correction")
		})
	}
}

func TestAdjustBalance_Validation(t *testing.T) {
	database, l := setup(t)

	_, err := l.AdjustBalance(context.Background(), admin, "A001", dec("5"), "  ")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = l.AdjustBalance(context.Background(), admin, "A001", decimal.Zero, "noop")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = l.AdjustBalance(context.Background(), admin, "A404", dec("5"), "missing")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	assert.Zero(t, count(t, database, &domain.AuditLog{}))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" -12.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec("-12.5")))

	_, err = ParseAmount("twelve")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$5.00", Money(dec("5")))
	assert.Equal(t, "-$7.25", Money(dec("-7.25")))
}
