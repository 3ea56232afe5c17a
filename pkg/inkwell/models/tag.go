package models

import "time"

// Tag is a lower-cased topic label shared by many posts
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`

	// Relationships
	Posts []Post `gorm:"many2many:post_tags;" json:"posts,omitempty"`
}

// PostTag is the join row between posts and tags. The composite primary key
// keeps each pair unique.
type PostTag struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	TagID     uint      `gorm:"primaryKey;autoIncrement:false;index" json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
