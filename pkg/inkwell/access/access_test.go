package access

import (
	"testing"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
)

func TestCanRead(t *testing.T) {
	published := &models.Post{ID: 1, AuthorID: 10, Status: models.PostStatusPublished}
	draft := &models.Post{ID: 2, AuthorID: 10, Status: models.PostStatusDraft}

	tests := []struct {
		name string
		post *models.Post
		req  Requester
		want bool
	}{
		{"published anonymous", published, Anonymous(), true},
		{"published stranger", published, Requester{UserID: 11, Role: models.RoleUser}, true},
		{"draft anonymous", draft, Anonymous(), false},
		{"draft stranger", draft, Requester{UserID: 11, Role: models.RoleUser}, false},
		{"draft moderator", draft, Requester{UserID: 11, Role: models.RoleModerator}, false},
		{"draft author", draft, Requester{UserID: 10, Role: models.RoleUser}, true},
		{"draft admin", draft, Requester{UserID: 11, Role: models.RoleAdmin}, true},
		{"draft super admin", draft, Requester{UserID: 11, Role: models.RoleSuperAdmin}, true},
		{"draft anonymous with admin role", draft, Requester{Role: models.RoleAdmin}, true},
		{"nil post", nil, Requester{UserID: 10, Role: models.RoleAdmin}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRead(tt.post, tt.req); got != tt.want {
				t.Errorf("CanRead() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanWrite(t *testing.T) {
	for _, status := range []models.PostStatus{models.PostStatusDraft, models.PostStatusPublished} {
		post := &models.Post{ID: 1, AuthorID: 10, Status: status}

		if !CanWrite(post, Requester{UserID: 10, Role: models.RoleUser}) {
			t.Errorf("%s: author should be able to write", status)
		}
		if CanWrite(post, Requester{UserID: 11, Role: models.RoleUser}) {
			t.Errorf("%s: stranger should not be able to write", status)
		}
		if CanWrite(post, Anonymous()) {
			t.Errorf("%s: anonymous should not be able to write", status)
		}
		if !CanWrite(post, Requester{UserID: 11, Role: models.RoleAdmin}) {
			t.Errorf("%s: admin should be able to write", status)
		}
	}
}

func TestAnonymousNeverMatchesAuthorZero(t *testing.T) {
	post := &models.Post{AuthorID: 0, Status: models.PostStatusDraft}
	if Anonymous().IsAuthor(post) {
		t.Error("Anonymous requester must not be treated as author")
	}
}
