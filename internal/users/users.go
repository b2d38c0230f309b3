// Package users coordinates the user lifecycle and the account side effects
// each step has.
package users

import (
	"bank_backoffice/internal/audit"
	"bank_backoffice/internal/domain"
	"bank_backoffice/internal/ids"
	"bank_backoffice/internal/ledger"
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateInput holds the fields of a new user
type CreateInput struct {
	Name           string
	Email          string
	Password       string
	Role           domain.Role
	AccountType    domain.AccountType // Customers only, Savings when empty
	InitialBalance decimal.Decimal    // Customers only
}

// CreateResult lists what Create wrote
type CreateResult struct {
	UserID        string `json:"user_id"`
	AccountID     string `json:"account_id,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// UpdateInput holds requested changes. Empty fields are left untouched.
type UpdateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UpdateResult summarizes an update
type UpdateResult struct {
	Changed         bool     `json:"changed"`
	Changes         []string `json:"changes,omitempty"`
	AccountsRenamed int64    `json:"accounts_renamed"`
	AccountsRemoved int64    `json:"accounts_removed"`
	Message         string   `json:"message"`
}

// StatusResult summarizes a status change
type StatusResult struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// Coordinator runs user lifecycle operations
type Coordinator struct {
	db       *gorm.DB
	ids      *ids.Allocator
	audit    *audit.Writer
	ledger   *ledger.Ledger
	hashCost int
}

// NewCoordinator creates a Coordinator
func NewCoordinator(db *gorm.DB, alloc *ids.Allocator, w *audit.Writer, l *ledger.Ledger) *Coordinator {
	return &Coordinator{db: db, ids: alloc, audit: w, ledger: l, hashCost: bcrypt.DefaultCost}
}

func (c *Coordinator) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), c.hashCost)
	if err != nil {
		return "", domain.Storage("failed to hash password", err)
	}
	return string(h), nil
}

// Create adds a user. Customers also get an account, funded through the
// ledger when InitialBalance is positive.
func (c *Coordinator) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*CreateResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return nil, domain.Validation("missing required fields")
	}
	if !in.Role.Valid() {
		return nil, domain.Validation("invalid role")
	}
	if in.InitialBalance.IsNegative() {
		return nil, domain.Validation("initial balance cannot be negative")
	}
	if err := ledger.ValidateAmount(in.InitialBalance); err != nil {
		return nil, err
	}
	if in.AccountType == "" {
		in.AccountType = domain.AccountSavings
	}
	if !in.AccountType.Valid() {
		return nil, domain.Validation("invalid account type")
	}

	hash, err := c.hash(in.Password)
	if err != nil {
		return nil, err
	}

	res := &CreateResult{}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&domain.User{}).Where("email = ?", in.Email).Count(&taken).Error; err != nil {
			return domain.Storage("failed to check email", err)
		}
		if taken > 0 {
			return domain.Conflict("email already exists")
		}

		userID, err := c.ids.Allocate(tx, ids.UserID)
		if err != nil {
			return err
		}
		user := domain.User{
			ID:           userID,
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: hash,
			Role:         in.Role,
			Status:       domain.UserActive,
		}
		if err := tx.Create(&user).Error; err != nil {
			return domain.FromDB(err, "user not found")
		}
		res.UserID = userID
		if err := c.audit.Record(tx, actor, audit.ActionUserAdded,
			fmt.Sprintf("User ID: %s, Name: %s, Role: %s", userID, in.Name, in.Role)); err != nil {
			return err
		}

		if in.Role != domain.RoleCustomer {
			return nil
		}
		return c.openAccount(tx, actor, &user, in, res)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"email": in.Email,
			"error": err.Error(),
		}).Warn("User creation failed")
		return nil, domain.FromDB(err, "user not found")
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    res.UserID,
		"account_id": res.AccountID,
		"actor":      actor.String(),
	}).Info("User created")
	return res, nil
}

// openAccount inserts the customer's first account at zero and posts the
// opening balance as a deposit
func (c *Coordinator) openAccount(tx *gorm.DB, actor domain.Actor, user *domain.User, in CreateInput, res *CreateResult) error {
	accountID, err := c.ids.Allocate(tx, ids.AccountID)
	if err != nil {
		return err
	}
	number, err := c.ids.AllocateAccountNumber(tx)
	if err != nil {
		return err
	}
	account := domain.Account{
		ID:            accountID,
		UserID:        user.ID,
		AccountNumber: number,
		CustomerName:  user.Name,
		AccountType:   in.AccountType,
		Balance:       decimal.Zero,
		Status:        domain.AccountActive,
	}
	if err := tx.Create(&account).Error; err != nil {
		return domain.FromDB(err, "user not found")
	}
	res.AccountID, res.AccountNumber = accountID, number
	if err := c.audit.Record(tx, actor, audit.ActionAccountCreated,
		fmt.Sprintf("Account No: %s for User ID: %s, Initial Balance: %s", number, user.ID, ledger.Money(in.InitialBalance))); err != nil {
		return err
	}

	if !in.InitialBalance.IsPositive() {
		return nil
	}
	posted, err := c.ledger.ApplyDeltaTx(tx, actor, ledger.Posting{
		AccountID:   accountID,
		Amount:      in.InitialBalance,
		Type:        domain.TypeDeposit,
		Description: "Initial account funding",
		AuditDetails: func(r *ledger.Result) string {
			return fmt.Sprintf("Initial deposit of %s for Account: %s (Transaction: %s)", ledger.Money(r.Amount), r.AccountNumber, r.TransactionID)
		},
	})
	if err != nil {
		return err
	}
	res.TransactionID = posted.TransactionID
	return nil
}

// Update applies the changed fields of in to user id. A Customer leaving the
// Customer role loses all accounts and their transactions.
func (c *Coordinator) Update(ctx context.Context, actor domain.Actor, id string, in UpdateInput) (*UpdateResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role != "" && !in.Role.Valid() {
		return nil, domain.Validation("invalid role")
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = c.hash(in.Password); err != nil {
			return nil, err
		}
	}

	res := &UpdateResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return domain.FromDB(err, "user not found")
		}

		fields := map[string]any{}
		nameChanged := in.Name != "" && in.Name != user.Name
		if nameChanged {
			fields["name"] = in.Name
			res.Changes = append(res.Changes, fmt.Sprintf("Name: %s -> %s", user.Name, in.Name))
		}
		if in.Email != "" && in.Email != user.Email {
			var taken int64
			if err := tx.Model(&domain.User{}).Where("email = ? AND id <> ?", in.Email, id).Count(&taken).Error; err != nil {
				return domain.Storage("failed to check email", err)
			}
			if taken > 0 {
				return domain.Conflict("email already exists for another user")
			}
			fields["email"] = in.Email
			res.Changes = append(res.Changes, fmt.Sprintf("Email: %s -> %s", user.Email, in.Email))
		}
		if hash != "" {
			fields["password_hash"] = hash
			res.Changes = append(res.Changes, "Password updated")
		}
		roleChanged := in.Role != "" && in.Role != user.Role
		if roleChanged {
			fields["role"] = in.Role
			res.Changes = append(res.Changes, fmt.Sprintf("Role: %s -> %s", user.Role, in.Role))
		}
		if len(fields) == 0 {
			return nil
		}
		res.Changed = true
		if err := tx.Model(&domain.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return domain.FromDB(err, "user not found")
		}

		leavingCustomer := user.Role == domain.RoleCustomer && roleChanged
		switch {
		case leavingCustomer:
			removed, err := removeAccounts(tx, id)
			if err != nil {
				return err
			}
			res.AccountsRemoved = removed
			if removed > 0 {
				if err := c.audit.Record(tx, actor, audit.ActionAccountsRemoved,
					fmt.Sprintf("Removed %d account(s) for User ID: %s as role changed from Customer.", removed, id)); err != nil {
					return err
				}
			}
		case user.Role == domain.RoleCustomer && nameChanged:
			renamed := tx.Model(&domain.Account{}).Where("user_id = ?", id).Update("customer_name", in.Name)
			if renamed.Error != nil {
				return domain.Storage("failed to update account names", renamed.Error)
			}
			res.AccountsRenamed = renamed.RowsAffected
			if renamed.RowsAffected > 0 {
				if err := c.audit.Record(tx, actor, audit.ActionAccountNameUpdated,
					fmt.Sprintf("Customer name updated in accounts for User ID: %s.", id)); err != nil {
					return err
				}
			}
		}

		return c.audit.Record(tx, actor, audit.ActionUserEdited,
			fmt.Sprintf("User ID: %s, Details: %s", id, strings.Join(res.Changes, ", ")))
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": id,
			"error":   err.Error(),
		}).Warn("User update failed")
		return nil, domain.FromDB(err, "user not found")
	}

	if !res.Changed {
		res.Message = "No changes detected"
		return res, nil
	}
	res.Message = "User updated successfully"
	logrus.WithFields(logrus.Fields{
		"user_id":          id,
		"changes":          len(res.Changes),
		"accounts_removed": res.AccountsRemoved,
		"actor":            actor.String(),
	}).Info("User updated")
	return res, nil
}

// Delete removes user id together with its accounts and their transactions
func (c *Coordinator) Delete(ctx context.Context, actor domain.Actor, id string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return domain.FromDB(err, "user not found")
		}
		if _, err := removeAccounts(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&domain.User{}, "id = ?", id).Error; err != nil {
			return domain.Storage("failed to delete user", err)
		}
		return c.audit.Record(tx, actor, audit.ActionUserDeleted,
			fmt.Sprintf("User ID: %s, Name: %s and associated accounts/transactions deleted.", id, user.Name))
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": id,
			"error":   err.Error(),
		}).Warn("User deletion failed")
		return domain.FromDB(err, "user not found")
	}
	logrus.WithFields(logrus.Fields{"user_id": id, "actor": actor.String()}).Info("User deleted")
	return nil
}

// SetStatus activates or deactivates user id. Setting the current status is
// a no-op and writes nothing.
func (c *Coordinator) SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.UserStatus) (*StatusResult, error) {
	if !status.Valid() {
		return nil, domain.Validation("invalid status provided")
	}
	res := &StatusResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return domain.FromDB(err, "user not found")
		}
		if user.Status == status {
			res.Message = fmt.Sprintf("User is already %s.", status)
			return nil
		}
		if err := tx.Model(&domain.User{}).Where("id = ?", id).Update("status", status).Error; err != nil {
			return domain.Storage("failed to update status", err)
		}
		res.Changed = true
		res.Message = fmt.Sprintf("User %s status changed to %s.", id, status)
		action := audit.ActionUserActivated
		if status == domain.UserInactive {
			action = audit.ActionUserDeactivated
		}
		return c.audit.Record(tx, actor, action,
			fmt.Sprintf("User ID: %s, Name: %s status changed to %s.", id, user.Name, status))
	})
	if err != nil {
		return nil, domain.FromDB(err, "user not found")
	}
	if res.Changed {
		logrus.WithFields(logrus.Fields{"user_id": id, "status": status, "actor": actor.String()}).Info("User status changed")
	}
	return res, nil
}

// Authenticate checks a login. Only active users may sign in.
func (c *Coordinator) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	var user domain.User
	if err := c.db.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).First(&user).Error; err != nil {
		if err = domain.FromDB(err, "user not found"); domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.Validation("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Validation("invalid credentials")
	}
	if user.Status != domain.UserActive {
		return nil, domain.InvalidState("user is inactive")
	}
	return &user, nil
}

// removeAccounts deletes every account of userID and the transactions on them
func removeAccounts(tx *gorm.DB, userID string) (int64, error) {
	owned := tx.Model(&domain.Account{}).Select("id").Where("user_id = ?", userID)
	if err := tx.Where("account_id IN (?)", owned).Delete(&domain.Transaction{}).Error; err != nil {
		return 0, domain.Storage("failed to delete transactions", err)
	}
	removed := tx.Where("user_id = ?", userID).Delete(&domain.Account{})
	if removed.Error != nil {
		return 0, domain.Storage("failed to delete accounts", removed.Error)
	}
	return removed.RowsAffected, nil
}
