package models

import "time"

// RefreshToken is one member of a user's currently-valid refresh token set.
// The raw signed token is stored and matched by exact string equality; a row
// exists exactly while the token is ACTIVE (rotation and logout delete it).
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    uint   `gorm:"index;not null"`
	Token     string `gorm:"size:1024;not null;uniqueIndex"`
}
