// Package routines stores routines and the ordered moves composing them.
package routines

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew   = "routines.service.new"
	opCreate       = "routines.create"
	opList         = "routines.list"
	opGet          = "routines.get"
	opFind         = "routines.find"
	opUpdate       = "routines.update"
	opDelete       = "routines.delete"
	opIsNameUnique = "routines.is_name_unique"

	columnID              = "id"
	columnUserID          = "user_id"
	columnName            = "name"
	columnDescription     = "description"
	columnDurationMinutes = "duration_minutes"

	queryID          = columnID + " = ?"
	queryUserID      = columnUserID + " = ?"
	queryOwnerName   = columnUserID + " = ? AND " + columnName + " = ?"
	queryExcludingID = columnID + " <> ?"
	orderNewest      = "created_at DESC, id DESC"

	reasonMissingDatabase = "missing_database"
	reasonNotFound        = "not_found"
	reasonNameTaken       = "name_taken"
	reasonQueryFailed     = "query_failed"
	reasonInvalidDuration = "invalid_duration"

	messageNotFound  = "Routine not found"
	messageNameTaken = "Routine name already exists"
	messageDuration  = "Duration must be a positive number"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies required by the routine catalog.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	Logger      *zap.Logger
	Composition *Composition
}

// Service persists routines.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	logger      *zap.Logger
	composition *Composition
}

// NewService constructs the routine catalog. A composition is built on the same handle when none is supplied.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	composition := cfg.Composition
	if composition == nil {
		built, err := NewComposition(CompositionConfig{Database: cfg.Database, Clock: clock, Logger: logger})
		if err != nil {
			return nil, err
		}
		composition = built
	}
	return &Service{
		db:          cfg.Database,
		clock:       clock,
		logger:      logger,
		composition: composition,
	}, nil
}

// Composition exposes the collaborator managing routine membership.
func (s *Service) Composition() *Composition {
	return s.composition
}

// Create stores a new routine owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID uint, input Input) (Routine, error) {
	db := s.db.WithContext(ctx)
	unique, err := s.isNameUnique(db, input.Name, ownerID, 0)
	if err != nil {
		return Routine{}, err
	}
	if !unique {
		return Routine{}, apperrors.New(apperrors.ErrConflict, opCreate, reasonNameTaken, messageNameTaken)
	}

	routine := Routine{
		UserID:          ownerID,
		Name:            input.Name,
		DurationMinutes: input.DurationMinutes,
		CreatedAt:       s.clock().UTC(),
	}
	if input.Description != "" {
		description := input.Description
		routine.Description = &description
	}
	if err := db.Create(&routine).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return Routine{}, apperrors.Wrap(apperrors.ErrConflict, opCreate, reasonNameTaken, messageNameTaken, err)
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return Routine{}, apperrors.Wrap(apperrors.ErrValidation, opCreate, "invalid_owner", "Invalid reference", err)
		}
		logError(s.logger, opCreate, "insert_failed", err, zap.Uint("user_id", ownerID))
		return Routine{}, apperrors.Internal(opCreate, "insert_failed", err)
	}
	return routine, nil
}

// List returns the owner's routines, newest first.
func (s *Service) List(ctx context.Context, ownerID uint) ([]Routine, error) {
	routines := []Routine{}
	err := s.db.WithContext(ctx).Where(queryUserID, ownerID).Order(orderNewest).Find(&routines).Error
	if err != nil {
		logError(s.logger, opList, reasonQueryFailed, err, zap.Uint("user_id", ownerID))
		return nil, apperrors.Internal(opList, reasonQueryFailed, err)
	}
	return routines, nil
}

// GetByID loads a routine with its moves in playback order, regardless of its owner.
func (s *Service) GetByID(ctx context.Context, id uint) (Detail, error) {
	db := s.db.WithContext(ctx)
	routine, err := fetchRoutine(db, s.logger, opGet, id)
	if err != nil {
		return Detail{}, err
	}
	entries, err := fetchRoutineMoves(db, s.logger, opGet, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Routine: routine, Moves: entries}, nil
}

// Find loads the bare routine record. It serves as the ownership accessor.
func (s *Service) Find(ctx context.Context, id uint) (Routine, error) {
	return fetchRoutine(s.db.WithContext(ctx), s.logger, opFind, id)
}

// Update writes only the fields set in the patch. A new name must stay unique among
// the acting user's routines.
func (s *Service) Update(ctx context.Context, id uint, changes Patch, actingUserID uint) (Routine, error) {
	db := s.db.WithContext(ctx)
	if changes.Empty() {
		return fetchRoutine(db, s.logger, opUpdate, id)
	}
	if duration := changes.DurationMinutes.Value(); duration != nil && *duration < 0 {
		return Routine{}, apperrors.New(apperrors.ErrValidation, opUpdate, reasonInvalidDuration, messageDuration)
	}
	if name, ok := changes.Name.Get(); ok {
		unique, err := s.isNameUnique(db, name, actingUserID, id)
		if err != nil {
			return Routine{}, err
		}
		if !unique {
			return Routine{}, apperrors.New(apperrors.ErrConflict, opUpdate, reasonNameTaken, messageNameTaken)
		}
	}

	result := db.Model(&Routine{}).Where(queryID, id).Updates(changes.columns())
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return Routine{}, apperrors.Wrap(apperrors.ErrConflict, opUpdate, reasonNameTaken, messageNameTaken, result.Error)
		}
		logError(s.logger, opUpdate, "update_failed", result.Error, zap.Uint("routine_id", id))
		return Routine{}, apperrors.Internal(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Routine{}, apperrors.New(apperrors.ErrNotFound, opUpdate, reasonNotFound, messageNotFound)
	}
	return fetchRoutine(db, s.logger, opUpdate, id)
}

// Delete removes the routine and its entries.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryEntryRoutine, id).Delete(&Entry{}).Error; err != nil {
			logError(s.logger, opDelete, "delete_entries_failed", err, zap.Uint("routine_id", id))
			return apperrors.Internal(opDelete, "delete_entries_failed", err)
		}
		result := tx.Where(queryID, id).Delete(&Routine{})
		if result.Error != nil {
			logError(s.logger, opDelete, "delete_failed", result.Error, zap.Uint("routine_id", id))
			return apperrors.Internal(opDelete, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrNotFound, opDelete, reasonNotFound, messageNotFound)
		}
		return nil
	})
}

// IsNameUnique reports whether ownerID has no routine called name other than excludeID.
// A zero excludeID excludes nothing.
func (s *Service) IsNameUnique(ctx context.Context, name string, ownerID, excludeID uint) (bool, error) {
	return s.isNameUnique(s.db.WithContext(ctx), name, ownerID, excludeID)
}

func (s *Service) isNameUnique(db *gorm.DB, name string, ownerID, excludeID uint) (bool, error) {
	query := db.Model(&Routine{}).Where(queryOwnerName, ownerID, name)
	if excludeID != 0 {
		query = query.Where(queryExcludingID, excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		logError(s.logger, opIsNameUnique, reasonQueryFailed, err, zap.Uint("user_id", ownerID))
		return false, apperrors.Internal(opIsNameUnique, reasonQueryFailed, err)
	}
	return count == 0, nil
}

func fetchRoutine(db *gorm.DB, logger *zap.Logger, operation string, id uint) (Routine, error) {
	var routine Routine
	err := db.Where(queryID, id).Take(&routine).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Routine{}, apperrors.New(apperrors.ErrNotFound, operation, reasonNotFound, messageNotFound)
	}
	if err != nil {
		logError(logger, operation, reasonQueryFailed, err, zap.Uint("routine_id", id))
		return Routine{}, apperrors.Internal(operation, reasonQueryFailed, err)
	}
	return routine, nil
}

func logError(logger *zap.Logger, operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("routines service error", attrs...)
}
