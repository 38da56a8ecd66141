package routines

import (
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/patch"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
)

// Routine is an ordered collection of moves owned by one user. Names are unique per owner.
type Routine struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          uint      `gorm:"column:user_id;not null;uniqueIndex:idx_routines_user_name,priority:1" json:"user_id"`
	Name            string    `gorm:"column:name;size:200;not null;uniqueIndex:idx_routines_user_name,priority:2" json:"name"`
	Description     *string   `gorm:"column:description;type:text" json:"description"`
	DurationMinutes *int      `gorm:"column:duration_minutes;check:duration_minutes >= 0" json:"duration_minutes"`
	CreatedAt       time.Time `gorm:"column:created_at;not null" json:"created_at"`

	Owner *users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Routine) TableName() string {
	return "routines"
}

// OwnerID reports the owning user.
func (r Routine) OwnerID() uint {
	return r.UserID
}

// Entry places one move at an order position inside a routine.
// The same move may appear in a routine more than once.
type Entry struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoutineID  uint      `gorm:"column:routine_id;not null;index:idx_routine_moves_routine_order,priority:1" json:"routine_id"`
	MoveID     uint      `gorm:"column:move_id;not null;index:idx_routine_moves_move" json:"move_id"`
	OrderIndex int       `gorm:"column:order_index;not null;check:order_index >= 0;index:idx_routine_moves_routine_order,priority:2" json:"order_index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`

	Routine *Routine    `gorm:"foreignKey:RoutineID;constraint:OnDelete:CASCADE" json:"-"`
	Move    *moves.Move `gorm:"foreignKey:MoveID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "routine_moves"
}

// RoutineMove is a move as it appears inside a routine.
type RoutineMove struct {
	moves.Move
	OrderIndex int `gorm:"column:order_index" json:"order_index"`
}

// Detail is a routine together with its moves in playback order.
type Detail struct {
	Routine
	Moves []RoutineMove `json:"moves"`
}

// Input carries the already-validated fields of a new routine.
type Input struct {
	Name            string
	Description     string
	DurationMinutes *int
}

// Patch lists the fields a routine update may change. The next composition change
// overwrites a patched duration with the entry count.
type Patch struct {
	Name            patch.Field[string]
	Description     patch.Field[string]
	DurationMinutes patch.Field[*int]
}

// Empty reports whether no field was supplied.
func (p Patch) Empty() bool {
	return !p.Name.IsSet() && !p.Description.IsSet() && !p.DurationMinutes.IsSet()
}

func (p Patch) columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if name, ok := p.Name.Get(); ok {
		updates[columnName] = name
	}
	if description, ok := p.Description.Get(); ok {
		if description == "" {
			updates[columnDescription] = nil
		} else {
			updates[columnDescription] = description
		}
	}
	if duration, ok := p.DurationMinutes.Get(); ok {
		if duration == nil {
			updates[columnDurationMinutes] = nil
		} else {
			updates[columnDurationMinutes] = *duration
		}
	}
	return updates
}
