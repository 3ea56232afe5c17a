package models

import "time"

// PostStatus is the lifecycle state of a post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// ParsePostStatus accepts exactly "draft" or "published"
func ParsePostStatus(s string) (PostStatus, bool) {
	switch PostStatus(s) {
	case PostStatusDraft, PostStatusPublished:
		return PostStatus(s), true
	}
	return "", false
}

// Post represents a blog post
type Post struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Title            string     `gorm:"uniqueIndex;not null" json:"title"`
	Content          string     `gorm:"type:text" json:"content"`
	ShortDescription string     `gorm:"type:text" json:"short_description"`
	AuthorID         uint       `gorm:"not null;index" json:"author_id"`
	Status           PostStatus `gorm:"type:varchar(20);not null;default:'published';index" json:"status"`

	// Relationships
	Author User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags   []Tag `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE;" json:"tags,omitempty"`
}

// IsPublished reports whether the post is publicly visible
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}
