package domain

import "time"

// Role is the role a user holds in the back office
type Role string

const (
	RoleCustomer Role = "Customer"
	RoleStaff    Role = "Staff"
	RoleAdmin    Role = "Admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the activation state of a user
type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// Valid reports whether s is one of the two legal statuses
func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

// User Model
type User struct {
	ID           string     `gorm:"primaryKey;size:16" json:"id"`                           // Allocated id, e.g. U1A2B3C4D
	Name         string     `gorm:"size:120;not null" json:"name"`                          // Display name
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`             // Unique email
	PasswordHash string     `gorm:"size:255;not null" json:"-"`                             // bcrypt hash, never exposed
	Role         Role       `gorm:"size:16;not null" json:"role"`                           // Customer, Staff or Admin
	Status       UserStatus `gorm:"size:16;not null" json:"status"`                         // Active or Inactive
	CreatedAt    time.Time  `json:"created_at"`                                             // Set by gorm on insert
	UpdatedAt    time.Time  `json:"updated_at"`                                             // Set by gorm on update
	Accounts     []Account  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"` // Owned accounts
}

// Actor identifies the administrator performing a mutation
type Actor struct {
	ID   string
	Name string
}

// String renders the actor the way it is stored in the audit log
func (a Actor) String() string {
	if a.ID == "" {
		return a.Name
	}
	return a.Name + " (" + a.ID + ")"
}
