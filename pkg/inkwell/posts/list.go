package posts

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinPageSize     = 3
	MaxPageSize     = 100
	DefaultPageSize = 10
)

// Page is one page of a post listing
type Page struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	TotalCount int64         `json:"total_count"`
	Items      []models.Post `json:"items"`
}

// ListFilter narrows the published listing. Zero values disable a filter.
type ListFilter struct {
	AuthorID uint
	// Tag matches any tag whose name contains it, case-insensitively
	Tag string
	// Search matches title, short description, content, author name or tag name
	Search string
}

// ClampPagination forces page to at least 1 and pageSize into
// [MinPageSize, MaxPageSize]
func ClampPagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < MinPageSize {
		pageSize = MinPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ListPublished returns published posts matching the filter, newest first
func (s *Store) ListPublished(ctx context.Context, f ListFilter, page, pageSize int) (*Page, error) {
	ids := func() *gorm.DB {
		q := s.postIDs(ctx).Where("posts.status = ?", models.PostStatusPublished)
		if f.AuthorID != 0 {
			q = q.Where("posts.author_id = ?", f.AuthorID)
		}
		if tag := strings.TrimSpace(f.Tag); tag != "" {
			q = q.Joins("INNER JOIN post_tags ON post_tags.post_id = posts.id").
				Joins("INNER JOIN tags ON tags.id = post_tags.tag_id").
				Where(`tags.name LIKE ? ESCAPE '\'`, likePattern(tag))
		}
		if search := strings.TrimSpace(f.Search); search != "" {
			q = applySearch(q, search)
		}
		return q
	}
	return s.paginate(ctx, "published", ids, page, pageSize)
}

// ListDrafts returns drafts, limited to one author unless authorID is zero.
// Callers decide who may list every author's drafts.
func (s *Store) ListDrafts(ctx context.Context, authorID uint, page, pageSize int) (*Page, error) {
	ids := func() *gorm.DB {
		q := s.postIDs(ctx).Where("posts.status = ?", models.PostStatusDraft)
		if authorID != 0 {
			q = q.Where("posts.author_id = ?", authorID)
		}
		return q
	}
	return s.paginate(ctx, "drafts", ids, page, pageSize)
}

// ListByIDs returns the published posts among ids
func (s *Store) ListByIDs(ctx context.Context, postIDs []uint, page, pageSize int) (*Page, error) {
	if len(postIDs) == 0 {
		page, _ = ClampPagination(page, pageSize)
		return emptyPage(page), nil
	}
	ids := func() *gorm.DB {
		return s.postIDs(ctx).
			Where("posts.status = ?", models.PostStatusPublished).
			Where("posts.id IN ?", postIDs)
	}
	return s.paginate(ctx, "by_ids", ids, page, pageSize)
}

func (s *Store) postIDs(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Post{}).Distinct("posts.id")
}

// paginate counts and pages over the id sub-query, then loads the page's
// posts with authors and tags in one batch. ids must return a fresh query
// on every call.
func (s *Store) paginate(ctx context.Context, listing string, ids func() *gorm.DB, page, pageSize int) (*Page, error) {
	page, pageSize = ClampPagination(page, pageSize)
	result := emptyPage(page)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("posts.id IN (?)", ids()).Count(&total).Error; err != nil {
		s.log.Error("counting posts", zap.String("listing", listing), zap.Error(err))
		return nil, fmt.Errorf("counting %s posts: %w", listing, err)
	}
	if total == 0 {
		return result, nil
	}
	result.TotalCount = total
	result.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	// Past the last page nothing is fetched; this also keeps the offset
	// below from overflowing.
	if page > result.TotalPages {
		return result, nil
	}

	var pageIDs []uint
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("posts.id IN (?)", ids()).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Offset((page-1)*pageSize).
		Limit(pageSize).
		Pluck("posts.id", &pageIDs).Error
	if err != nil {
		s.log.Error("paging posts", zap.String("listing", listing), zap.Error(err))
		return nil, fmt.Errorf("paging %s posts: %w", listing, err)
	}
	if len(pageIDs) == 0 {
		return result, nil
	}

	var rows []models.Post
	err = s.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		Where("posts.id IN ?", pageIDs).
		Find(&rows).Error
	if err != nil {
		s.log.Error("loading posts", zap.String("listing", listing), zap.Error(err))
		return nil, fmt.Errorf("loading %s posts: %w", listing, err)
	}

	byID := make(map[uint]models.Post, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(pageIDs))
	for _, id := range pageIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	result.Items = dedupeByID(ordered)
	return result, nil
}

func emptyPage(page int) *Page {
	return &Page{Page: page, Items: []models.Post{}}
}

// dedupeByID drops repeated posts, keeping the first occurrence
func dedupeByID(posts []models.Post) []models.Post {
	seen := make(map[uint]struct{}, len(posts))
	out := posts[:0]
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func applySearch(q *gorm.DB, search string) *gorm.DB {
	like := likePattern(search)
	return q.Where(`(LOWER(posts.title) LIKE @q ESCAPE '\'
		OR LOWER(posts.short_description) LIKE @q ESCAPE '\'
		OR LOWER(posts.content) LIKE @q ESCAPE '\'
		OR EXISTS (
			SELECT 1 FROM users
			WHERE users.id = posts.author_id
			AND (LOWER(users.first_name) LIKE @q ESCAPE '\'
				OR LOWER(users.last_name) LIKE @q ESCAPE '\'
				OR LOWER(users.first_name || ' ' || users.last_name) LIKE @q ESCAPE '\'))
		OR EXISTS (
			SELECT 1 FROM post_tags
			INNER JOIN tags ON tags.id = post_tags.tag_id
			WHERE post_tags.post_id = posts.id
			AND tags.name LIKE @q ESCAPE '\'))`,
		map[string]interface{}{"q": like})
}

// likePattern builds a lower-cased substring pattern with LIKE wildcards in
// the input escaped
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
