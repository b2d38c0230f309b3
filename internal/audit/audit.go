// Package audit appends and lists administrative audit records.
package audit

import (
	"bank_backoffice/internal/domain"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Action types written by the core
const (
	ActionUserAdded          = "New User Added"
	ActionUserEdited         = "User Edited"
	ActionUserDeleted        = "User Deleted"
	ActionUserActivated      = "User Activated"
	ActionUserDeactivated    = "User Deactivated"
	ActionAccountCreated     = "New Account Created"
	ActionAccountNameUpdated = "Account Name Updated"
	ActionAccountsRemoved    = "Account(s) Removed"
	ActionTransactionAdded   = "Transaction Added"
	ActionBalanceAdjusted    = "Account Balance Adjusted"
	ActionTxnReversed        = "Transaction Reversed"
)

// Writer appends audit entries
type Writer struct {
	now func() time.Time
}

// NewWriter creates a Writer
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// Record appends one entry. Pass the transaction handle of the change being
// audited so the entry commits or rolls back with it.
func (w *Writer) Record(tx *gorm.DB, actor domain.Actor, actionType, details string) error {
	// Version 7 ids grow with write order, breaking timestamp ties
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Storage("failed to generate audit log id", err)
	}
	entry := domain.AuditLog{
		ID:            id.String(),
		Timestamp:     w.now(),
		AdminUser:     actor.String(),
		ActionType:    actionType,
		ActionDetails: details,
	}
	if err := tx.Create(&entry).Error; err != nil {
		logrus.WithFields(logrus.Fields{
			"action_type": actionType,
			"error":       err.Error(),
		}).Error("Audit write failed")
		return domain.Storage("failed to write audit log", err)
	}
	return nil
}

// Filter narrows an audit log listing
type Filter struct {
	Search   string
	Page     int
	PageSize int
}

// Page is one page of audit entries
type Page struct {
	Logs     []domain.AuditLog `json:"logs"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int64             `json:"total"`
}

// List returns entries newest first, matching Search against action type,
// admin user and details case-insensitively.
func List(ctx context.Context, db *gorm.DB, f Filter) (*Page, error) {
	q := db.WithContext(ctx).Model(&domain.AuditLog{})
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(action_type) LIKE ? OR LOWER(admin_user) LIKE ? OR LOWER(action_details) LIKE ?", like, like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, domain.Storage("failed to count audit logs", err)
	}
	page, size := normalizePage(f.Page, f.PageSize)
	var logs []domain.AuditLog
	if err := q.Order("timestamp desc, id desc").Offset((page - 1) * size).Limit(size).Find(&logs).Error; err != nil {
		return nil, domain.Storage("failed to fetch audit logs", err)
	}
	return &Page{Logs: logs, Page: page, PageSize: size, Total: total}, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
