package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User represents a registered author or reader
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	FirstName    string         `gorm:"not null" json:"first_name"`
	LastName     string         `json:"last_name"`
	RoleID       RoleID         `gorm:"not null;default:1;index" json:"role_id"`

	// Relationships
	Role Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// FullName joins first and last name the way search and stats see it
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
