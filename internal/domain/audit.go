package domain

import "time"

// AuditLog Model, append only
type AuditLog struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Timestamp     time.Time `gorm:"index;not null" json:"timestamp"`
	AdminUser     string    `gorm:"size:160;not null" json:"admin_user"`
	ActionType    string    `gorm:"size:64;not null" json:"action_type"`
	ActionDetails string    `gorm:"type:text;not null" json:"action_details"`
}
