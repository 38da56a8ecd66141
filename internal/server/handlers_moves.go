package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/patch"
	"github.com/gin-gonic/gin"
)

type createMoveRequestPayload struct {
	Name            string `json:"name" binding:"required,max=200"`
	Description     string `json:"description"`
	VideoURL        string `json:"video_url" binding:"omitempty,max=500,url,videourl"`
	DifficultyLevel string `json:"difficulty_level" binding:"omitempty,oneof=beginner intermediate advanced"`
}

type updateMoveRequestPayload struct {
	Name            patch.Field[string] `json:"name"`
	Description     patch.Field[string] `json:"description"`
	VideoURL        patch.Field[string] `json:"video_url"`
	DifficultyLevel patch.Field[string] `json:"difficulty_level"`
}

func (h *httpHandler) handleListMoves(c *gin.Context) {
	search := c.Query("q")
	if search == "" {
		search = c.Query("search")
	}
	filters := moves.Filters{Search: search}

	if raw := strings.TrimSpace(c.Query("difficulty_level")); raw != "" {
		difficulty, err := moves.ParseDifficulty(raw)
		if err != nil {
			respondValidation(c, []fieldError{{
				Field:   "difficulty_level",
				Message: describeRule("difficulty_level", "oneof", "beginner intermediate advanced", 0),
			}})
			return
		}
		filters.Difficulty = difficulty
	}

	list, err := h.moves.List(c.Request.Context(), actingUserID(c), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moves": list, "count": len(list)})
}

// Any authenticated user may read a move by id.
func (h *httpHandler) handleGetMove(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	move, err := h.moves.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"move": move})
}

func (h *httpHandler) handleCreateMove(c *gin.Context) {
	var request createMoveRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	move, err := h.moves.Create(c.Request.Context(), actingUserID(c), moves.Input{
		Name:        request.Name,
		Description: request.Description,
		VideoURL:    request.VideoURL,
		Difficulty:  moves.Difficulty(request.DifficultyLevel),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Move created successfully", "move": move})
}

func (h *httpHandler) handleUpdateMove(c *gin.Context) {
	var request updateMoveRequestPayload
	if !bindJSON(c, &request) {
		return
	}
	checks := newPatchValidator()
	checks.check("name", request.Name, ruleMoveName)
	checks.check("video_url", request.VideoURL, ruleVideoURL)
	checks.check("difficulty_level", request.DifficultyLevel, ruleDifficulty)
	if !checks.ok(c) {
		return
	}

	changes := moves.Patch{
		Name:        request.Name,
		Description: request.Description,
		VideoURL:    request.VideoURL,
	}
	if difficulty, ok := request.DifficultyLevel.Get(); ok {
		changes.Difficulty = patch.Set(moves.Difficulty(difficulty))
	}

	owned := c.MustGet(resourceContextKey).(moves.Move)
	move, err := h.moves.Update(c.Request.Context(), owned.ID, changes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Move updated successfully", "move": move})
}

func (h *httpHandler) handleDeleteMove(c *gin.Context) {
	owned := c.MustGet(resourceContextKey).(moves.Move)
	if err := h.moves.Delete(c.Request.Context(), owned.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Move deleted successfully"})
}
