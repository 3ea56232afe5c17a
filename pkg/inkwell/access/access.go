// Package access decides who may read or change a post.
package access

import "github.com/inkwell-blog/inkwell/pkg/inkwell/models"

// Requester identifies the caller of an operation. The zero value is an
// anonymous caller.
type Requester struct {
	UserID uint
	Role   models.RoleID
}

// Anonymous returns a requester with no identity
func Anonymous() Requester {
	return Requester{}
}

// IsAnonymous reports whether the requester carries no user id
func (r Requester) IsAnonymous() bool {
	return r.UserID == 0
}

// IsPrivileged reports whether the requester has an admin-tier role
func (r Requester) IsPrivileged() bool {
	return r.Role.IsPrivileged()
}

// IsAuthor reports whether the requester wrote the post
func (r Requester) IsAuthor(post *models.Post) bool {
	return !r.IsAnonymous() && post != nil && post.AuthorID == r.UserID
}

// CanRead reports whether the requester may view the post. Published posts
// are public; drafts are limited to their author and privileged roles.
func CanRead(post *models.Post, r Requester) bool {
	if post == nil {
		return false
	}
	if post.IsPublished() {
		return true
	}
	return r.IsAuthor(post) || r.IsPrivileged()
}

// CanWrite reports whether the requester may change or delete the post,
// whatever its status.
func CanWrite(post *models.Post, r Requester) bool {
	if post == nil {
		return false
	}
	return r.IsAuthor(post) || r.IsPrivileged()
}
