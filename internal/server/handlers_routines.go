package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/patch"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/routines"
	"github.com/gin-gonic/gin"
)

const ruleRoutineName = "required,max=200"

type createRoutineRequestPayload struct {
	Name            string `json:"name" binding:"required,max=200"`
	Description     string `json:"description"`
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=0"`
}

type updateRoutineRequestPayload struct {
	Name            patch.Field[string] `json:"name"`
	Description     patch.Field[string] `json:"description"`
	DurationMinutes patch.Field[*int]   `json:"duration_minutes"`
}

type addRoutineMoveRequestPayload struct {
	MoveID *uint `json:"move_id" binding:"required"`
	Order  *int  `json:"order" binding:"required,min=0"`
}

type updateRoutineMoveRequestPayload struct {
	Order *int `json:"order" binding:"required,min=0"`
}

func (h *httpHandler) handleListRoutines(c *gin.Context) {
	list, err := h.routines.List(c.Request.Context(), actingUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routines": list, "count": len(list)})
}

// Any authenticated user may read a routine by id.
func (h *httpHandler) handleGetRoutine(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := h.routines.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routine": detail})
}

func (h *httpHandler) handleCreateRoutine(c *gin.Context) {
	var request createRoutineRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	routine, err := h.routines.Create(c.Request.Context(), actingUserID(c), routines.Input{
		Name:            request.Name,
		Description:     request.Description,
		DurationMinutes: request.DurationMinutes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Routine created successfully", "routine": routine})
}

func (h *httpHandler) handleUpdateRoutine(c *gin.Context) {
	var request updateRoutineRequestPayload
	if !bindJSON(c, &request) {
		return
	}
	checks := newPatchValidator()
	checks.check("name", request.Name, ruleRoutineName)
	checks.checkMinimum("duration_minutes", request.DurationMinutes, 0)
	if !checks.ok(c) {
		return
	}

	owned := c.MustGet(resourceContextKey).(routines.Routine)
	routine, err := h.routines.Update(c.Request.Context(), owned.ID, routines.Patch{
		Name:            request.Name,
		Description:     request.Description,
		DurationMinutes: request.DurationMinutes,
	}, actingUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Routine updated successfully", "routine": routine})
}

func (h *httpHandler) handleDeleteRoutine(c *gin.Context) {
	owned := c.MustGet(resourceContextKey).(routines.Routine)
	if err := h.routines.Delete(c.Request.Context(), owned.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Routine deleted successfully"})
}

func (h *httpHandler) handleListRoutineMoves(c *gin.Context) {
	routineID, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.composition.ListMoves(c.Request.Context(), routineID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moves": list, "count": len(list)})
}

func (h *httpHandler) handleAddRoutineMove(c *gin.Context) {
	routineID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var request addRoutineMoveRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	entry, err := h.composition.AddMove(c.Request.Context(), routineID, *request.MoveID, *request.Order, actingUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Move added to routine successfully", "routine_move": entry})
}

func (h *httpHandler) handleUpdateRoutineMove(c *gin.Context) {
	routineID, ok := parseID(c, "id")
	if !ok {
		return
	}
	moveID, ok := parseID(c, "moveId")
	if !ok {
		return
	}
	var request updateRoutineMoveRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	entry, err := h.composition.UpdateOrder(c.Request.Context(), routineID, moveID, *request.Order, actingUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Move order updated successfully", "routine_move": entry})
}

func (h *httpHandler) handleRemoveRoutineMove(c *gin.Context) {
	routineID, ok := parseID(c, "id")
	if !ok {
		return
	}
	moveID, ok := parseID(c, "moveId")
	if !ok {
		return
	}
	if err := h.composition.RemoveMove(c.Request.Context(), routineID, moveID, actingUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Move removed from routine successfully"})
}
