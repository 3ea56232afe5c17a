// Package stats computes site-wide aggregate statistics from the database
// and the likes ledger.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/likes"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DefaultTopN is the length of every ranking unless configured otherwise
const DefaultTopN = 10

type RoleCount struct {
	Role  string `json:"role" gorm:"column:role"`
	Count int64  `json:"count" gorm:"column:total"`
}

type StatusCount struct {
	Status string `json:"status" gorm:"column:status"`
	Count  int64  `json:"count" gorm:"column:total"`
}

type AuthorCount struct {
	UserID     uint   `json:"user_id" gorm:"column:user_id"`
	AuthorName string `json:"author_name" gorm:"column:author_name"`
	PostsCount int64  `json:"posts_count" gorm:"column:posts_count"`
}

type TagCount struct {
	Tag  string `json:"tag" gorm:"column:tag"`
	Uses int64  `json:"uses" gorm:"column:uses"`
}

type PostLikes struct {
	PostID int64  `json:"post_id"`
	Title  string `json:"title"`
	Likes  int    `json:"likes"`
}

// Report is the full statistics snapshot
type Report struct {
	UsersTotal      int64         `json:"users_total"`
	RolesBreakdown  []RoleCount   `json:"roles_breakdown"`
	PostsTotal      int64         `json:"posts_total"`
	PostsByStatus   []StatusCount `json:"posts_by_status"`
	TopAuthors      []AuthorCount `json:"top_authors"`
	TagsTotal       int64         `json:"tags_total"`
	TopTags         []TagCount    `json:"top_tags"`
	AvgTagsPerPost  float64       `json:"avg_tags_per_post"`
	LikesTotal      int           `json:"likes_total"`
	UniqueLikers    int           `json:"unique_likers"`
	TopPostsByLikes []PostLikes   `json:"top_posts_by_likes"`
}

// Aggregator computes Reports
type Aggregator struct {
	db    *gorm.DB
	likes likes.Store
	topN  int
	log   *zap.Logger
}

// NewAggregator creates a new aggregator. A non-positive topN uses DefaultTopN.
func NewAggregator(db *gorm.DB, likeStore likes.Store, topN int, log *zap.Logger) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{db: db, likes: likeStore, topN: topN, log: log.Named("stats")}
}

// Compute builds a fresh report. The likes ledger is read while the database
// aggregates run.
func (a *Aggregator) Compute(ctx context.Context) (*Report, error) {
	report := &Report{}
	var ledger []likes.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ledger = a.likes.ReadAll(gctx)
		return nil
	})
	g.Go(func() error {
		return a.databaseStats(gctx, report)
	})
	if err := g.Wait(); err != nil {
		a.log.Error("computing stats", zap.Error(err))
		return nil, err
	}

	if err := a.likeStats(ctx, ledger, report); err != nil {
		a.log.Error("computing like stats", zap.Error(err))
		return nil, err
	}
	return report, nil
}

func (a *Aggregator) databaseStats(ctx context.Context, r *Report) error {
	db := a.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Count(&r.UsersTotal).Error; err != nil {
		return fmt.Errorf("counting users: %w", err)
	}

	r.RolesBreakdown = []RoleCount{}
	err := db.Table("users").
		Select("roles.name AS role, COUNT(users.id) AS total").
		Joins("INNER JOIN roles ON roles.id = users.role_id").
		Where("users.deleted_at IS NULL").
		Group("roles.name").
		Order("total DESC").
		Order("roles.name ASC").
		Scan(&r.RolesBreakdown).Error
	if err != nil {
		return fmt.Errorf("counting users by role: %w", err)
	}

	if err := db.Model(&models.Post{}).Count(&r.PostsTotal).Error; err != nil {
		return fmt.Errorf("counting posts: %w", err)
	}

	r.PostsByStatus = []StatusCount{}
	err = db.Table("posts").
		Select("status, COUNT(id) AS total").
		Group("status").
		Order("total DESC").
		Order("status ASC").
		Scan(&r.PostsByStatus).Error
	if err != nil {
		return fmt.Errorf("counting posts by status: %w", err)
	}

	r.TopAuthors = []AuthorCount{}
	err = db.Table("posts").
		Select("users.id AS user_id, TRIM(users.first_name || ' ' || users.last_name) AS author_name, COUNT(posts.id) AS posts_count").
		Joins("INNER JOIN users ON users.id = posts.author_id").
		Group("users.id, users.first_name, users.last_name").
		Order("posts_count DESC").
		Order("users.id ASC").
		Limit(a.topN).
		Scan(&r.TopAuthors).Error
	if err != nil {
		return fmt.Errorf("ranking authors: %w", err)
	}

	if err := db.Model(&models.Tag{}).Count(&r.TagsTotal).Error; err != nil {
		return fmt.Errorf("counting tags: %w", err)
	}

	r.TopTags = []TagCount{}
	err = db.Table("post_tags").
		Select("tags.name AS tag, COUNT(post_tags.tag_id) AS uses").
		Joins("INNER JOIN tags ON tags.id = post_tags.tag_id").
		Group("tags.id, tags.name").
		Order("uses DESC").
		Order("tags.name ASC").
		Limit(a.topN).
		Scan(&r.TopTags).Error
	if err != nil {
		return fmt.Errorf("ranking tags: %w", err)
	}

	// Posts without tags are absent from the inner query, so they do not
	// pull the average down.
	var avg sql.NullFloat64
	err = db.Raw(`SELECT AVG(tag_count) FROM (
		SELECT post_id, COUNT(tag_id) AS tag_count FROM post_tags GROUP BY post_id
	) AS per_post`).Row().Scan(&avg)
	if err != nil {
		return fmt.Errorf("averaging tags per post: %w", err)
	}
	if avg.Valid {
		r.AvgTagsPerPost = avg.Float64
	}
	return nil
}

// likeStats counts likes that are well-formed, liked and point at a post that
// still exists
func (a *Aggregator) likeStats(ctx context.Context, ledger []likes.Record, r *Report) error {
	r.TopPostsByLikes = []PostLikes{}

	var candidates []int64
	seenCandidate := make(map[int64]bool)
	for _, rec := range ledger {
		if rec.Valid() && !seenCandidate[rec.PostID] {
			seenCandidate[rec.PostID] = true
			candidates = append(candidates, rec.PostID)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var existing []struct {
		ID    int64
		Title string
	}
	err := a.db.WithContext(ctx).Model(&models.Post{}).
		Select("id, title").
		Where("id IN ?", candidates).
		Scan(&existing).Error
	if err != nil {
		return fmt.Errorf("resolving liked posts: %w", err)
	}
	titles := make(map[int64]string, len(existing))
	for _, p := range existing {
		titles[p.ID] = p.Title
	}

	counts := make(map[int64]int)
	var order []int64
	likers := make(map[int64]bool)
	for _, rec := range ledger {
		if !rec.Valid() {
			continue
		}
		if _, ok := titles[rec.PostID]; !ok {
			continue
		}
		r.LikesTotal++
		likers[rec.UserID] = true
		if counts[rec.PostID] == 0 {
			order = append(order, rec.PostID)
		}
		counts[rec.PostID]++
	}
	r.UniqueLikers = len(likers)

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > a.topN {
		order = order[:a.topN]
	}
	for _, id := range order {
		r.TopPostsByLikes = append(r.TopPostsByLikes, PostLikes{PostID: id, Title: titles[id], Likes: counts[id]})
	}
	return nil
}
