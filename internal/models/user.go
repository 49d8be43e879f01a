package models

import (
	"encoding/json"
	"time"
)

// UserType represents the type of back office user
type UserType int

const (
	UserTypeEditor UserType = 1
	UserTypeAdmin  UserType = 2
)

// MarshalJSON converts UserType to string for JSON
func (ut UserType) MarshalJSON() ([]byte, error) {
	var s string
	switch ut {
	case UserTypeEditor:
		s = "editor"
	case UserTypeAdmin:
		s = "admin"
	default:
		s = "unknown"
	}
	return json.Marshal(s)
}

// UnmarshalJSON converts string to UserType
func (ut *UserType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "editor":
		*ut = UserTypeEditor
	case "admin":
		*ut = UserTypeAdmin
	}
	return nil
}

// User represents a back office account
type User struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Username string   `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Password string   `gorm:"size:255;not null" json:"-"`
	Email    string   `gorm:"size:255" json:"email"`
	FullName string   `gorm:"size:255" json:"full_name"`
	UserType UserType `gorm:"not null;default:1;index" json:"user_type"`

	// Optional TOTP second factor
	TwoFactorEnabled bool   `gorm:"default:false" json:"two_factor_enabled"`
	TwoFactorSecret  string `gorm:"size:64" json:"-"`

	ForcePasswordChange bool       `gorm:"default:false" json:"force_password_change"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt         *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
