package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/routines"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillRoutineDurations = "2025-11-02_backfill_routine_durations"
	migrationBackfillMoveFoldedNames  = "2025-11-09_backfill_move_folded_names"
)

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
		{name: migrationBackfillRoutineDurations, apply: routines.RefreshAllDurations},
		{name: migrationBackfillMoveFoldedNames, apply: moves.BackfillFoldedNames},
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
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}
