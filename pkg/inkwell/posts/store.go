// Package posts stores blog posts and enforces who may see and change them.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/access"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/tags"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errRollback aborts a transaction whose Result has already been decided
var errRollback = errors.New("rollback")

// Store is the content store for posts
type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	tags  *tags.Registry
	links *tags.LinkManager
}

// NewStore creates a new post store
func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:    db,
		log:   log.Named("posts"),
		tags:  tags.NewRegistry(db, log),
		links: tags.NewLinkManager(db, log),
	}
}

// CreateInput holds the fields of a new post
type CreateInput struct {
	Title            string
	Content          string
	ShortDescription string
	// Status defaults to published when empty
	Status string
	Tags   []string
}

// EditInput replaces the editable fields of a post. Tags replace the whole
// tag set; nil or empty clears it.
type EditInput struct {
	Title            string
	Content          string
	ShortDescription string
	Tags             []string
}

// GetVisible fetches a post with its author and tags if the requester may
// read it. Failures are a *VisibilityError wrapping ErrNotFound or
// ErrForbidden; any other error is a storage failure.
func (s *Store) GetVisible(ctx context.Context, postID uint, r access.Requester) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("Author").Preload("Tags").First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &VisibilityError{PostID: postID, kind: ErrNotFound}
	}
	if err != nil {
		s.log.Error("fetching post", zap.Uint("post_id", postID), zap.Error(err))
		return nil, fmt.Errorf("fetching post %d: %w", postID, err)
	}

	if !access.CanRead(&post, r) {
		s.log.Debug("draft hidden from requester",
			zap.Uint("post_id", postID), zap.Uint("requester_id", r.UserID))
		return nil, &VisibilityError{PostID: postID, kind: ErrForbidden}
	}
	return &post, nil
}

// Create inserts a new post authored by the requester together with its tags
func (s *Store) Create(ctx context.Context, in CreateInput, r access.Requester) Result {
	if r.IsAnonymous() {
		return Result{Outcome: OutcomePermissionDenied, Message: "authentication required to create posts"}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Result{Outcome: OutcomeInvalidInput, Message: "title is required"}
	}
	status := models.PostStatusPublished
	if in.Status != "" {
		parsed, ok := models.ParsePostStatus(in.Status)
		if !ok {
			return invalidStatus(in.Status)
		}
		status = parsed
	}

	post := models.Post{
		Title:            title,
		Content:          in.Content,
		ShortDescription: in.ShortDescription,
		AuthorID:         r.UserID,
		Status:           status,
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
			if isUniqueViolation(err) {
				res = titleConflict(title)
				return errRollback
			}
			return fmt.Errorf("inserting post: %w", err)
		}
		if err := s.replaceTags(ctx, tx, post.ID, in.Tags, false); err != nil {
			return err
		}
		res = Result{
			Outcome: OutcomeSuccess,
			Message: fmt.Sprintf("post %d created", post.ID),
			PostID:  post.ID,
			Status:  post.Status,
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return s.storageFailure("creating post", 0, err)
	}
	return res
}

// SetStatus moves a post between draft and published
func (s *Store) SetStatus(ctx context.Context, postID uint, newStatus string, r access.Requester) Result {
	status, ok := models.ParsePostStatus(newStatus)
	if !ok {
		return invalidStatus(newStatus)
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, denied, err := s.lookupForWrite(tx, postID, r, "change the status of")
		if err != nil || denied != nil {
			if denied != nil {
				res = *denied
			}
			return err
		}

		if post.Status == status {
			res = Result{
				Outcome: OutcomeNoOp,
				Message: fmt.Sprintf("post already has status %q", status),
				PostID:  postID,
				Status:  status,
			}
			return nil
		}

		if err := tx.Model(post).Update("status", status).Error; err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		res = Result{
			Outcome: OutcomeSuccess,
			Message: fmt.Sprintf("post status changed to %q", status),
			PostID:  postID,
			Status:  status,
		}
		return nil
	})
	if err != nil {
		return s.storageFailure("changing post status", postID, err)
	}
	return res
}

// Delete removes a post and its tag links
func (s *Store) Delete(ctx context.Context, postID uint, r access.Requester) Result {
	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, denied, err := s.lookupForWrite(tx, postID, r, "delete")
		if err != nil || denied != nil {
			if denied != nil {
				res = *denied
			}
			return err
		}

		if err := s.links.WithTx(tx).ClearLinks(ctx, postID); err != nil {
			return err
		}
		if err := tx.Delete(&models.Post{}, postID).Error; err != nil {
			return fmt.Errorf("deleting post: %w", err)
		}
		res = Result{
			Outcome: OutcomeSuccess,
			Message: fmt.Sprintf("post %d deleted", postID),
			PostID:  postID,
			Status:  post.Status,
		}
		return nil
	})
	if err != nil {
		return s.storageFailure("deleting post", postID, err)
	}
	return res
}

// Edit replaces the title, content, short description and tag set of a post.
// A duplicate title rolls back the whole edit and reports a conflict.
func (s *Store) Edit(ctx context.Context, postID uint, in EditInput, r access.Requester) Result {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Result{Outcome: OutcomeInvalidInput, Message: "title is required", PostID: postID}
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, denied, err := s.lookupForWrite(tx, postID, r, "edit")
		if err != nil || denied != nil {
			if denied != nil {
				res = *denied
			}
			return err
		}

		if title != post.Title {
			var taken int64
			if err := tx.Model(&models.Post{}).Where("title = ? AND id <> ?", title, postID).Count(&taken).Error; err != nil {
				return fmt.Errorf("checking title: %w", err)
			}
			if taken > 0 {
				res = titleConflict(title)
				res.PostID = postID
				return errRollback
			}
		}

		err = tx.Model(post).Updates(map[string]interface{}{
			"title":             title,
			"content":           in.Content,
			"short_description": in.ShortDescription,
		}).Error
		if err != nil {
			// A concurrent writer took the title after the check above.
			if isUniqueViolation(err) {
				res = titleConflict(title)
				res.PostID = postID
				return errRollback
			}
			return fmt.Errorf("updating post: %w", err)
		}

		if err := s.replaceTags(ctx, tx, postID, in.Tags, true); err != nil {
			return err
		}
		res = Result{
			Outcome: OutcomeSuccess,
			Message: fmt.Sprintf("post %d updated", postID),
			PostID:  postID,
			Status:  post.Status,
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return s.storageFailure("editing post", postID, err)
	}
	return res
}

// lookupForWrite loads the post inside tx and checks write access. A non-nil
// Result means the operation stops there without a storage error.
func (s *Store) lookupForWrite(tx *gorm.DB, postID uint, r access.Requester, verb string) (*models.Post, *Result, error) {
	var post models.Post
	err := tx.First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Result{
			Outcome: OutcomeNotFound,
			Message: fmt.Sprintf("post %d not found", postID),
			PostID:  postID,
		}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading post: %w", err)
	}

	if !access.CanWrite(&post, r) {
		s.log.Info("write denied",
			zap.Uint("post_id", postID),
			zap.Uint("requester_id", r.UserID),
			zap.Uint("role", uint(r.Role)),
		)
		return nil, &Result{
			Outcome: OutcomePermissionDenied,
			Message: fmt.Sprintf("you do not have permission to %s this post", verb),
			PostID:  postID,
			Status:  post.Status,
		}, nil
	}
	return &post, nil, nil
}

// replaceTags resolves names to tag ids and links them to the post, first
// dropping existing links when clear is set. Names are trimmed and blank ones
// ignored.
func (s *Store) replaceTags(ctx context.Context, tx *gorm.DB, postID uint, names []string, clear bool) error {
	if clear {
		if err := s.links.WithTx(tx).ClearLinks(ctx, postID); err != nil {
			return err
		}
	}
	names = tags.CleanNames(names)
	if len(names) == 0 {
		return nil
	}
	ids, err := s.tags.WithTx(tx).EnsureTags(ctx, names)
	if err != nil {
		return fmt.Errorf("ensuring tags: %w", err)
	}
	return s.links.WithTx(tx).SyncLinks(ctx, postID, ids)
}

func (s *Store) storageFailure(op string, postID uint, err error) Result {
	s.log.Error(op, zap.Uint("post_id", postID), zap.Error(err))
	return Result{Outcome: OutcomeStorageError, Message: internalErrorMessage, PostID: postID}
}

func invalidStatus(status string) Result {
	return Result{
		Outcome: OutcomeInvalidInput,
		Message: fmt.Sprintf("invalid status %q: use %q or %q", status, models.PostStatusDraft, models.PostStatusPublished),
	}
}

func titleConflict(title string) Result {
	return Result{Outcome: OutcomeConflict, Message: fmt.Sprintf("a post titled %q already exists", title)}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
