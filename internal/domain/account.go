package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the product type of an account
type AccountType string

const (
	AccountSavings  AccountType = "Savings"
	AccountChecking AccountType = "Checking"
)

// Valid reports whether t is a known account type
func (t AccountType) Valid() bool {
	return t == AccountSavings || t == AccountChecking
}

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	AccountActive AccountStatus = "Active"
	AccountClosed AccountStatus = "Closed"
)

// Account Model
//
// CustomerName is a copy of the owner's name. It is re-synced when a
// Customer is renamed.
type Account struct {
	ID            string          `gorm:"primaryKey;size:16" json:"id"`
	UserID        string          `gorm:"size:16;index;not null" json:"user_id"`
	AccountNumber string          `gorm:"size:9;uniqueIndex;not null" json:"account_number"`
	CustomerName  string          `gorm:"size:120;not null" json:"customer_name"`
	AccountType   AccountType     `gorm:"size:16;not null" json:"account_type"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance"`
	Status        AccountStatus   `gorm:"size:16;not null" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Transactions  []Transaction   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
