package models

import "time"

// Post is a recipe post. Image is a public path under the uploads dir.
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Content   string     `gorm:"type:text" json:"content"`
	OwnerID   uint       `gorm:"index;not null" json:"owner"`
	Image     string     `gorm:"size:512" json:"image,omitempty"`
	Likes     []PostLike `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// PostLike records that a user liked a post; one row per (post, user).
type PostLike struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	PostID    uint `gorm:"index;not null;uniqueIndex:idx_post_user_like"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_post_user_like"`
}
