package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns all models for migration
// Note: Role must be migrated before User, and User before Post
func AllModels() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Tag{},
		&Post{},
		&PostTag{},
	}
}

// AutoMigrate runs GORM auto-migration for all models and seeds the roles
// table, which other rows reference.
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Post{}, "Tags", &PostTag{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&Tag{}, "Posts", &PostTag{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return SeedRoles(db)
}

// SeedRoles inserts the default roles, leaving existing rows untouched
func SeedRoles(db *gorm.DB) error {
	roles := DefaultRoles()
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error
}
