// Package likes keeps the ledger of which users like which posts. A record
// is only ever stored while liked; absence means not liked.
package likes

import (
	"context"
	"encoding/json"
)

// Record is one ledger entry
type Record struct {
	UserID int64
	PostID int64
	Liked  bool
	// Typed is false when either id in the stored entry was not a JSON
	// integer. Such entries are kept on disk but never counted.
	Typed bool

	raw json.RawMessage
}

// Store is the likes ledger
type Store interface {
	// ReadAll returns every record. A missing or corrupt ledger reads as empty.
	ReadAll(ctx context.Context) []Record
	// WriteAll replaces the ledger with records
	WriteAll(ctx context.Context, records []Record) error
	// LikedPostIDs returns the posts the user likes
	LikedPostIDs(ctx context.Context, userID int64) []int64
	// Toggle flips an existing like off, or records a like when liked is
	// true and none exists. It returns whether the like is present afterwards.
	Toggle(ctx context.Context, userID, postID int64, liked bool) (bool, error)
}

// Valid reports whether the record counts as a like
func (r Record) Valid() bool {
	return r.Typed && r.Liked
}

// UsersForPost returns the users with a valid like on the post, in ledger order
func UsersForPost(ctx context.Context, s Store, postID int64) []int64 {
	users := []int64{}
	seen := make(map[int64]bool)
	for _, r := range s.ReadAll(ctx) {
		if r.Valid() && r.PostID == postID && !seen[r.UserID] {
			seen[r.UserID] = true
			users = append(users, r.UserID)
		}
	}
	return users
}

// IsLiked reports whether the user likes the post
func IsLiked(ctx context.Context, s Store, userID, postID int64) bool {
	for _, id := range s.LikedPostIDs(ctx, userID) {
		if id == postID {
			return true
		}
	}
	return false
}
