// Package tags resolves tag names to rows and maintains post-tag links.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrBlankName is returned by EnsureTags for an empty or all-space name
var ErrBlankName = errors.New("blank tag name")

// Normalize returns the stored form of a tag name
func Normalize(name string) string {
	return strings.ToLower(name)
}

// CleanNames trims user-supplied tag names and drops the blank ones
func CleanNames(names []string) []string {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	return cleaned
}

// Registry maps tag names to tag ids, creating tags on first use
type Registry struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRegistry creates a new tag registry
func NewRegistry(db *gorm.DB, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{db: db, log: log.Named("tags")}
}

// WithTx returns a registry bound to an open transaction. EnsureTags then
// runs as a savepoint of that transaction.
func (r *Registry) WithTx(tx *gorm.DB) *Registry {
	return &Registry{db: tx, log: r.log}
}

// EnsureTags returns exactly one tag id per input name, in input order.
// Names are lower-cased and otherwise used as given; missing tags are
// inserted. Repeated names yield repeated ids. A blank name fails the call
// with ErrBlankName before anything is written, and any storage failure rolls
// back the whole batch.
func (r *Registry) EnsureTags(ctx context.Context, names []string) ([]uint, error) {
	ids := make([]uint, 0, len(names))
	if len(names) == 0 {
		return ids, nil
	}
	for i, raw := range names {
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("tag name at position %d: %w", i, ErrBlankName)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]uint, len(names))
		for _, raw := range names {
			name := Normalize(raw)
			if id, ok := seen[name]; ok {
				ids = append(ids, id)
				continue
			}

			id, err := r.findOrCreate(tx, name)
			if err != nil {
				return err
			}
			seen[name] = id
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		r.log.Error("ensuring tags", zap.Strings("names", names), zap.Error(err))
		return nil, err
	}
	return ids, nil
}

func (r *Registry) findOrCreate(tx *gorm.DB, name string) (uint, error) {
	var tag models.Tag
	err := tx.Where("name = ?", name).First(&tag).Error
	if err == nil {
		return tag.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("looking up tag %q: %w", name, err)
	}

	tag = models.Tag{Name: name}
	if err := tx.Omit("Posts").Create(&tag).Error; err != nil {
		// Lost a race with a concurrent insert of the same name.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
				return 0, fmt.Errorf("re-reading tag %q: %w", name, err)
			}
			return tag.ID, nil
		}
		return 0, fmt.Errorf("creating tag %q: %w", name, err)
	}
	r.log.Debug("created tag", zap.String("name", name), zap.Uint("id", tag.ID))
	return tag.ID, nil
}
