package database

import (
	"errors"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillLanguagePref = "2026-08-12_backfill_language_pref"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillLanguagePref, apply: backfillLanguagePref},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Early onboarding builds synced users without a language preference;
// treat those rows as English readers.
func backfillLanguagePref(db *gorm.DB) error {
	return db.Model(&users.User{}).
		Where("language_pref IS NULL OR language_pref = ''").
		Update("language_pref", "EN").Error
}
