package tags

import (
	"context"
	"fmt"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkManager writes the post_tags association rows
type LinkManager struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLinkManager creates a new link manager
func NewLinkManager(db *gorm.DB, log *zap.Logger) *LinkManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkManager{db: db, log: log.Named("tag_links")}
}

// WithTx returns a link manager bound to an open transaction
func (m *LinkManager) WithTx(tx *gorm.DB) *LinkManager {
	return &LinkManager{db: tx, log: m.log}
}

// SyncLinks links the post to every tag id. Existing pairs are left alone,
// zero ids are skipped with a warning and an empty batch does nothing.
func (m *LinkManager) SyncLinks(ctx context.Context, postID uint, tagIDs []uint) error {
	rows := make([]models.PostTag, 0, len(tagIDs))
	seen := make(map[uint]bool, len(tagIDs))
	for _, tagID := range tagIDs {
		if postID == 0 || tagID == 0 {
			m.log.Warn("skipping post-tag pair with missing id",
				zap.Uint("post_id", postID), zap.Uint("tag_id", tagID))
			continue
		}
		if seen[tagID] {
			continue
		}
		seen[tagID] = true
		rows = append(rows, models.PostTag{PostID: postID, TagID: tagID})
	}
	if len(rows) == 0 {
		m.log.Debug("no post-tag links to write", zap.Uint("post_id", postID))
		return nil
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		m.log.Error("writing post-tag links", zap.Uint("post_id", postID), zap.Error(err))
		return fmt.Errorf("linking tags to post %d: %w", postID, err)
	}
	return nil
}

// ClearLinks removes every tag link of the post
func (m *LinkManager) ClearLinks(ctx context.Context, postID uint) error {
	err := m.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.PostTag{}).Error
	if err != nil {
		m.log.Error("clearing post-tag links", zap.Uint("post_id", postID), zap.Error(err))
		return fmt.Errorf("clearing tags of post %d: %w", postID, err)
	}
	return nil
}
