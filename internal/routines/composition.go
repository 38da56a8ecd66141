package routines

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/access"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCompositionNew = "routines.composition.new"
	opListMoves      = "routines.list_moves"
	opAddMove        = "routines.add_move"
	opUpdateOrder    = "routines.update_order"
	opRemoveMove     = "routines.remove_move"
	opReleaseMove    = "routines.release_move"
	opRefresh        = "routines.refresh_duration"
	opLoadMove       = "routines.load_move"

	queryEntryRoutine     = "routine_id = ?"
	queryEntryMove        = "move_id = ?"
	queryEntryRoutineMove = "routine_id = ? AND move_id = ?"

	reasonEntryNotFound = "entry_not_found"
	messageEntryMissing = "Move not found in routine"
	messageMoveNotFound = "Move not found"
)

// CompositionConfig describes the dependencies required by routine composition.
type CompositionConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Composition maintains routine membership and keeps each routine's duration equal to its entry count.
type Composition struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewComposition constructs the composition collaborator.
func NewComposition(cfg CompositionConfig) (*Composition, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal(opCompositionNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Composition{db: cfg.Database, clock: clock, logger: logger}, nil
}

// ListMoves returns the routine's moves ordered by position, then by insertion.
func (c *Composition) ListMoves(ctx context.Context, routineID uint) ([]RoutineMove, error) {
	db := c.db.WithContext(ctx)
	if _, err := fetchRoutine(db, c.logger, opListMoves, routineID); err != nil {
		return nil, err
	}
	return fetchRoutineMoves(db, c.logger, opListMoves, routineID)
}

// AddMove appends an entry after verifying that actingUserID owns both the routine and the move.
func (c *Composition) AddMove(ctx context.Context, routineID, moveID uint, order int, actingUserID uint) (Entry, error) {
	if _, err := access.Authorize[Routine](ctx, actingUserID, routineID, c.routine); err != nil {
		return Entry{}, err
	}
	if _, err := access.Authorize[moves.Move](ctx, actingUserID, moveID, c.move); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		RoutineID:  routineID,
		MoveID:     moveID,
		OrderIndex: order,
		CreatedAt:  c.clock().UTC(),
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return apperrors.Wrap(apperrors.ErrValidation, opAddMove, "invalid_reference", "Invalid reference", err)
			}
			logError(c.logger, opAddMove, "insert_failed", err, zap.Uint("routine_id", routineID), zap.Uint("move_id", moveID))
			return apperrors.Internal(opAddMove, "insert_failed", err)
		}
		return c.refreshDuration(tx, routineID)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// UpdateOrder moves every entry of moveID within the routine to a new position and returns the earliest one.
func (c *Composition) UpdateOrder(ctx context.Context, routineID, moveID uint, order int, actingUserID uint) (Entry, error) {
	if _, err := access.Authorize[Routine](ctx, actingUserID, routineID, c.routine); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Entry{}).Where(queryEntryRoutineMove, routineID, moveID).Update("order_index", order)
		if result.Error != nil {
			logError(c.logger, opUpdateOrder, "update_failed", result.Error, zap.Uint("routine_id", routineID), zap.Uint("move_id", moveID))
			return apperrors.Internal(opUpdateOrder, "update_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrNotFound, opUpdateOrder, reasonEntryNotFound, messageEntryMissing)
		}
		if err := tx.Where(queryEntryRoutineMove, routineID, moveID).Order(columnID).Take(&entry).Error; err != nil {
			logError(c.logger, opUpdateOrder, reasonQueryFailed, err, zap.Uint("routine_id", routineID), zap.Uint("move_id", moveID))
			return apperrors.Internal(opUpdateOrder, reasonQueryFailed, err)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// RemoveMove deletes every entry of moveID within the routine.
func (c *Composition) RemoveMove(ctx context.Context, routineID, moveID uint, actingUserID uint) error {
	if _, err := access.Authorize[Routine](ctx, actingUserID, routineID, c.routine); err != nil {
		return err
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where(queryEntryRoutineMove, routineID, moveID).Delete(&Entry{})
		if result.Error != nil {
			logError(c.logger, opRemoveMove, "delete_failed", result.Error, zap.Uint("routine_id", routineID), zap.Uint("move_id", moveID))
			return apperrors.Internal(opRemoveMove, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrNotFound, opRemoveMove, reasonEntryNotFound, messageEntryMissing)
		}
		return c.refreshDuration(tx, routineID)
	})
}

// ReleaseMove removes every entry referencing moveID and refreshes each affected routine.
// It runs inside the caller's transaction.
func (c *Composition) ReleaseMove(ctx context.Context, tx *gorm.DB, moveID uint) error {
	tx = tx.WithContext(ctx)
	var routineIDs []uint
	if err := tx.Model(&Entry{}).Where(queryEntryMove, moveID).Distinct().Pluck("routine_id", &routineIDs).Error; err != nil {
		logError(c.logger, opReleaseMove, reasonQueryFailed, err, zap.Uint("move_id", moveID))
		return apperrors.Internal(opReleaseMove, reasonQueryFailed, err)
	}
	if len(routineIDs) == 0 {
		return nil
	}
	if err := tx.Where(queryEntryMove, moveID).Delete(&Entry{}).Error; err != nil {
		logError(c.logger, opReleaseMove, "delete_failed", err, zap.Uint("move_id", moveID))
		return apperrors.Internal(opReleaseMove, "delete_failed", err)
	}
	for _, routineID := range routineIDs {
		if err := c.refreshDuration(tx, routineID); err != nil {
			return err
		}
	}
	return nil
}

// RefreshAllDurations recomputes the duration of every routine from its entry count.
func RefreshAllDurations(tx *gorm.DB) error {
	counts := tx.Model(&Entry{}).
		Select("COUNT(*)").
		Where("routine_moves.routine_id = routines.id")
	return tx.Model(&Routine{}).
		Where("1 = 1").
		Update(columnDurationMinutes, gorm.Expr("(?)", counts)).Error
}

func (c *Composition) refreshDuration(tx *gorm.DB, routineID uint) error {
	var count int64
	if err := tx.Model(&Entry{}).Where(queryEntryRoutine, routineID).Count(&count).Error; err != nil {
		logError(c.logger, opRefresh, reasonQueryFailed, err, zap.Uint("routine_id", routineID))
		return apperrors.Internal(opRefresh, reasonQueryFailed, err)
	}
	if err := tx.Model(&Routine{}).Where(queryID, routineID).Update(columnDurationMinutes, int(count)).Error; err != nil {
		logError(c.logger, opRefresh, "update_failed", err, zap.Uint("routine_id", routineID))
		return apperrors.Internal(opRefresh, "update_failed", err)
	}
	return nil
}

func (c *Composition) routine(ctx context.Context, id uint) (Routine, error) {
	return fetchRoutine(c.db.WithContext(ctx), c.logger, opFind, id)
}

func (c *Composition) move(ctx context.Context, id uint) (moves.Move, error) {
	var move moves.Move
	err := c.db.WithContext(ctx).Where(queryID, id).Take(&move).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return moves.Move{}, apperrors.New(apperrors.ErrNotFound, opLoadMove, reasonNotFound, messageMoveNotFound)
	}
	if err != nil {
		logError(c.logger, opLoadMove, reasonQueryFailed, err, zap.Uint("move_id", id))
		return moves.Move{}, apperrors.Internal(opLoadMove, reasonQueryFailed, err)
	}
	return move, nil
}

func fetchRoutineMoves(db *gorm.DB, logger *zap.Logger, operation string, routineID uint) ([]RoutineMove, error) {
	entries := []RoutineMove{}
	err := db.Table("routine_moves").
		Select("moves.*, routine_moves.order_index").
		Joins("JOIN moves ON moves.id = routine_moves.move_id").
		Where("routine_moves.routine_id = ?", routineID).
		Order("routine_moves.order_index ASC, routine_moves.id ASC").
		Scan(&entries).Error
	if err != nil {
		logError(logger, operation, reasonQueryFailed, err, zap.Uint("routine_id", routineID))
		return nil, apperrors.Internal(operation, reasonQueryFailed, err)
	}
	return entries, nil
}
