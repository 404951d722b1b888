package models

import "time"

// Comment belongs to a post and is owned by the user who wrote it.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	PostID    uint      `gorm:"index;not null" json:"postId"`
	OwnerID   uint      `gorm:"index;not null" json:"owner"`
}
