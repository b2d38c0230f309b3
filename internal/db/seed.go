package db

import (
	"bank_backoffice/internal/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type seedUser struct {
	id, name, email, password string
	role                      domain.Role
	status                    domain.UserStatus
}

type seedAccount struct {
	id, userID, number, name string
	accountType              domain.AccountType
	balance                  string
	status                   domain.AccountStatus
}

type seedTxn struct {
	id, accountID, number, name, label, amount, date, description string
	status                                                        domain.TransactionStatus
}

var seedUsers = []seedUser{
	{"U001", "Alice Smith", "alice.s@example.com", "password123", domain.RoleCustomer, domain.UserActive},
	{"U002", "Bob Johnson", "bob.j@example.com", "password123", domain.RoleCustomer, domain.UserActive},
	{"U003", "Charlie Brown", "charlie.b@example.com", "password123", domain.RoleCustomer, domain.UserInactive},
	{"U004", "David Lee", "david.l@example.com", "staffpass", domain.RoleStaff, domain.UserActive},
	{"U005", "Admin User", "admin@example.com", "adminpass", domain.RoleAdmin, domain.UserActive},
}

var seedAccounts = []seedAccount{
	{"A001", "U001", "100010001", "Alice Smith", domain.AccountSavings, "5000.75", domain.AccountActive},
	{"A002", "U002", "100010002", "Bob Johnson", domain.AccountChecking, "1250.20", domain.AccountActive},
	{"A003", "U003", "100010003", "Charlie Brown", domain.AccountSavings, "200.00", domain.AccountClosed},
	{"A004", "U001", "100010004", "Alice Smith", domain.AccountChecking, "350.50", domain.AccountActive},
}

var seedTxns = []seedTxn{
	{"T001", "A001", "100010001", "Alice Smith", "Deposit", "1000.00", "2025-07-19T10:00:00Z", "Initial deposit", domain.StatusCompleted},
	{"T002", "A001", "100010001", "Alice Smith", "Withdrawal", "200.00", "2025-07-20T11:30:00Z", "ATM withdrawal", domain.StatusCompleted},
	{"T003", "A002", "100010002", "Bob Johnson", "Deposit", "500.00", "2025-07-20T14:00:00Z", "Salary deposit", domain.StatusCompleted},
	{"T004", "A001", "100010001", "Alice Smith", "Deposit", "500.00", "2025-07-21T09:00:00Z", "Online transfer in", domain.StatusCompleted},
	{"T005", "A003", "100010003", "Charlie Brown", "Withdrawal", "50.00", "2025-07-21T10:30:00Z", "Online bill payment", domain.StatusCompleted},
	{"T006", "A002", "100010002", "Bob Johnson", "Withdrawal", "100.00", "2025-07-21T12:00:00Z", "Shopping", domain.StatusCompleted},
	{"T007", "A004", "100010004", "Alice Smith", "Deposit", "200.00", "2025-07-21T13:00:00Z", "Pending check deposit", domain.StatusPending},
}

// Seed inserts demo data when the users table is empty
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil // Already seeded or in use
	}
	logrus.Info("Inserting mock data...")
	return db.Transaction(func(tx *gorm.DB) error {
		for _, u := range seedUsers {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := domain.User{ID: u.id, Name: u.name, Email: u.email, PasswordHash: string(hash), Role: u.role, Status: u.status}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}
		for _, a := range seedAccounts {
			account := domain.Account{
				ID: a.id, UserID: a.userID, AccountNumber: a.number, CustomerName: a.name,
				AccountType: a.accountType, Balance: decimal.RequireFromString(a.balance), Status: a.status,
			}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
		}
		for _, s := range seedTxns {
			txnType, ok := domain.ParseTransactionType(s.label)
			if !ok {
				return fmt.Errorf("unknown transaction type %q", s.label)
			}
			date, err := time.Parse(time.RFC3339, s.date)
			if err != nil {
				return err
			}
			txn := domain.Transaction{
				ID: s.id, AccountID: s.accountID, AccountNumber: s.number, CustomerName: s.name,
				Type: txnType.Label, Kind: txnType.Kind, Direction: txnType.Direction,
				Amount: decimal.RequireFromString(s.amount), TransactionDate: date, Status: s.status, Description: s.description,
			}
			if err := tx.Create(&txn).Error; err != nil {
				return err
			}
		}
		logs := []domain.AuditLog{
			{ID: uuid.NewString(), Timestamp: time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC), AdminUser: "Admin User (U005)",
				ActionType: "User Activated", ActionDetails: "User: Bob Johnson (U002) status changed to Active."},
			{ID: uuid.NewString(), Timestamp: time.Date(2025, 7, 20, 15, 0, 0, 0, time.UTC), AdminUser: "Admin User (U005)",
				ActionType: "Account Balance Adjusted", ActionDetails: "Account: 100010001 (Alice Smith), Adjusted by: $5.00, Reason: Error correction."},
		}
		if err := tx.Create(&logs).Error; err != nil {
			return err
		}
		logrus.Info("Mock data inserted successfully.")
		return nil
	})
}
