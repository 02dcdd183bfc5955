package models

import (
	"time"
)

const (
	AdminRoleAdmin = "admin"
	AdminRoleOwner = "owner"
)

// AdminUser is a credential store record. Lockout state lives on the row itself.
type AdminUser struct {
	ID                  string     `json:"id" gorm:"primaryKey"`
	Username            string     `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash        string     `json:"-" gorm:"not null"`
	Role                string     `json:"role" gorm:"type:varchar(16);default:'admin'"`
	FailedLoginAttempts int        `json:"-" gorm:"default:0"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	IsActive            bool       `json:"is_active" gorm:"default:true"`
	CreatedAt           time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsLocked reports whether logins are refused at now.
func (a *AdminUser) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
