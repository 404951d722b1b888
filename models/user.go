package models

import (
	"time"
)

// User model. PasswordHash is nil for accounts created via Google sign-in;
// local login is rejected outright for those accounts.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash []byte    `json:"-"`
	ProfileImage string    `gorm:"size:512" json:"profileImage,omitempty"`
}
