// Package moves stores the per-user catalog of dance moves.
package moves

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew = "moves.service.new"
	opCreate     = "moves.create"
	opList       = "moves.list"
	opGet        = "moves.get"
	opUpdate     = "moves.update"
	opDelete     = "moves.delete"

	columnID          = "id"
	columnUserID      = "user_id"
	columnName        = "name"
	columnNameFolded  = "name_folded"
	columnDescription = "description"
	columnVideoURL    = "video_url"
	columnDifficulty  = "difficulty_level"

	queryID         = columnID + " = ?"
	queryUserID     = columnUserID + " = ?"
	queryDifficulty = columnDifficulty + " = ?"
	queryNameLike   = columnNameFolded + " LIKE ? ESCAPE '\\'"
	orderNewest     = "created_at DESC, id DESC"

	reasonMissingDatabase = "missing_database"
	reasonNotFound        = "not_found"
	reasonQueryFailed     = "query_failed"

	messageNotFound = "Move not found"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
	likeEscaper        = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// ReferenceReleaser detaches a move from everything that references it, inside the deleting transaction.
type ReferenceReleaser interface {
	ReleaseMove(ctx context.Context, tx *gorm.DB, moveID uint) error
}

// ServiceConfig describes the dependencies required by the move catalog.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	Logger     *zap.Logger
	References ReferenceReleaser
}

// Service persists moves.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	logger     *zap.Logger
	references ReferenceReleaser
}

// NewService constructs the move catalog.
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
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		logger:     logger,
		references: cfg.References,
	}, nil
}

// Create stores a new move owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID uint, input Input) (Move, error) {
	move := Move{
		UserID:      ownerID,
		Name:        input.Name,
		NameFolded:  FoldName(input.Name),
		Description: nullableString(input.Description),
		VideoURL:    nullableString(input.VideoURL),
		Difficulty:  nullableDifficulty(input.Difficulty),
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&move).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return Move{}, apperrors.Wrap(apperrors.ErrValidation, opCreate, "invalid_owner", "Invalid reference", err)
		}
		s.logError(opCreate, "insert_failed", err, zap.Uint("user_id", ownerID))
		return Move{}, apperrors.Internal(opCreate, "insert_failed", err)
	}
	return move, nil
}

// List returns the owner's moves matching every supplied filter, newest first.
// Search is a case-insensitive substring match on the folded name.
func (s *Service) List(ctx context.Context, ownerID uint, filters Filters) ([]Move, error) {
	query := s.db.WithContext(ctx).Where(queryUserID, ownerID)
	if search := filters.Search; search != "" {
		query = query.Where(queryNameLike, "%"+likeEscaper.Replace(FoldName(search))+"%")
	}
	if filters.Difficulty != "" {
		query = query.Where(queryDifficulty, string(filters.Difficulty))
	}

	moves := []Move{}
	if err := query.Order(orderNewest).Find(&moves).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err, zap.Uint("user_id", ownerID))
		return nil, apperrors.Internal(opList, reasonQueryFailed, err)
	}
	return moves, nil
}

// GetByID loads a move regardless of its owner.
func (s *Service) GetByID(ctx context.Context, id uint) (Move, error) {
	return s.load(s.db.WithContext(ctx), opGet, id)
}

// Update writes only the fields set in the patch. An empty patch returns the stored move unchanged.
func (s *Service) Update(ctx context.Context, id uint, changes Patch) (Move, error) {
	db := s.db.WithContext(ctx)
	if changes.Empty() {
		return s.load(db, opUpdate, id)
	}

	result := db.Model(&Move{}).Where(queryID, id).Updates(changes.columns())
	if result.Error != nil {
		s.logError(opUpdate, "update_failed", result.Error, zap.Uint("move_id", id))
		return Move{}, apperrors.Internal(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Move{}, apperrors.New(apperrors.ErrNotFound, opUpdate, reasonNotFound, messageNotFound)
	}
	return s.load(db, opUpdate, id)
}

// Delete removes the move after releasing every reference to it.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.references != nil {
			if err := s.references.ReleaseMove(ctx, tx, id); err != nil {
				s.logError(opDelete, "release_failed", err, zap.Uint("move_id", id))
				return apperrors.Internal(opDelete, "release_failed", err)
			}
		}
		result := tx.Where(queryID, id).Delete(&Move{})
		if result.Error != nil {
			s.logError(opDelete, "delete_failed", result.Error, zap.Uint("move_id", id))
			return apperrors.Internal(opDelete, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrNotFound, opDelete, reasonNotFound, messageNotFound)
		}
		return nil
	})
}

// BackfillFoldedNames recomputes the folded search key of every stored move.
func BackfillFoldedNames(tx *gorm.DB) error {
	var batch []Move
	return tx.Select(columnID, columnName).FindInBatches(&batch, 200, func(batchTx *gorm.DB, _ int) error {
		for _, move := range batch {
			if err := tx.Model(&Move{}).Where(queryID, move.ID).Update(columnNameFolded, FoldName(move.Name)).Error; err != nil {
				return err
			}
		}
		return nil
	}).Error
}

func (s *Service) load(db *gorm.DB, operation string, id uint) (Move, error) {
	var move Move
	err := db.Where(queryID, id).Take(&move).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Move{}, apperrors.New(apperrors.ErrNotFound, operation, reasonNotFound, messageNotFound)
	}
	if err != nil {
		s.logError(operation, reasonQueryFailed, err, zap.Uint("move_id", id))
		return Move{}, apperrors.Internal(operation, reasonQueryFailed, err)
	}
	return move, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("moves service error", attrs...)
}
