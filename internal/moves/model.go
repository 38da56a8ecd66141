package moves

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/patch"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
	"golang.org/x/text/cases"
)

// Difficulty enumerates how demanding a move is.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ErrInvalidDifficulty indicates a value outside the difficulty enumeration.
var ErrInvalidDifficulty = errors.New("moves: invalid difficulty")

// Difficulties lists the enumeration in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}
}

// ParseDifficulty validates raw input against the enumeration.
func ParseDifficulty(raw string) (Difficulty, error) {
	candidate := Difficulty(strings.TrimSpace(raw))
	for _, difficulty := range Difficulties() {
		if candidate == difficulty {
			return difficulty, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
}

// Move is a named technique owned by one user.
type Move struct {
	ID          uint        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID      uint        `gorm:"column:user_id;not null;index:idx_moves_user_created,priority:1" json:"user_id"`
	Name        string      `gorm:"column:name;size:200;not null" json:"name"`
	NameFolded  string      `gorm:"column:name_folded;size:800;not null;default:''" json:"-"`
	Description *string     `gorm:"column:description;type:text" json:"description"`
	VideoURL    *string     `gorm:"column:video_url;size:500" json:"video_url"`
	Difficulty  *Difficulty `gorm:"column:difficulty_level;size:20;check:difficulty_level IN ('beginner','intermediate','advanced')" json:"difficulty_level"`
	CreatedAt   time.Time   `gorm:"column:created_at;not null;index:idx_moves_user_created,priority:2" json:"created_at"`

	Owner *users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Move) TableName() string {
	return "moves"
}

// OwnerID reports the owning user.
func (m Move) OwnerID() uint {
	return m.UserID
}

// Input carries the already-validated fields of a new move. Empty optional strings are stored as NULL.
type Input struct {
	Name        string
	Description string
	VideoURL    string
	Difficulty  Difficulty
}

// Patch lists the fields a move update may change; unset fields keep their stored value.
type Patch struct {
	Name        patch.Field[string]
	Description patch.Field[string]
	VideoURL    patch.Field[string]
	Difficulty  patch.Field[Difficulty]
}

// Empty reports whether no field was supplied.
func (p Patch) Empty() bool {
	return !p.Name.IsSet() && !p.Description.IsSet() && !p.VideoURL.IsSet() && !p.Difficulty.IsSet()
}

func (p Patch) columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if name, ok := p.Name.Get(); ok {
		updates[columnName] = name
		updates[columnNameFolded] = FoldName(name)
	}
	if description, ok := p.Description.Get(); ok {
		updates[columnDescription] = nullableColumn(description)
	}
	if videoURL, ok := p.VideoURL.Get(); ok {
		updates[columnVideoURL] = nullableColumn(videoURL)
	}
	if difficulty, ok := p.Difficulty.Get(); ok {
		updates[columnDifficulty] = nullableColumn(difficulty)
	}
	return updates
}

// Filters narrows a listing. All supplied filters must match.
type Filters struct {
	Search     string
	Difficulty Difficulty
}

// FoldName applies Unicode case folding so searches match regardless of case in any script.
// A Caser carries state, so each call builds its own.
func FoldName(name string) string {
	return cases.Fold().String(name)
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableDifficulty(value Difficulty) *Difficulty {
	if value == "" {
		return nil
	}
	return &value
}

func nullableColumn[T ~string](value T) interface{} {
	if value == "" {
		return nil
	}
	return string(value)
}
