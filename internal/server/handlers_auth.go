package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
	"github.com/gin-gonic/gin"
)

type registerRequestPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Username string `json:"username" binding:"required,min=3,max=50"`
}

type loginRequestPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type sessionResponsePayload struct {
	Message string        `json:"message"`
	User    users.Profile `json:"user"`
	Token   string        `json:"token"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	session, err := h.accounts.Register(c.Request.Context(), users.RegistrationInput{
		Email:       request.Email,
		Password:    request.Password,
		DisplayName: request.Username,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponsePayload{
		Message: "User registered successfully",
		User:    session.User,
		Token:   session.Token,
	})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		Message: "Login successful",
		User:    session.User,
		Token:   session.Token,
	})
}

// Tokens are stateless; logout only acknowledges so the client can discard its copy.
func (h *httpHandler) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	profile, ok := c.Get(profileContextKey)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": messageAuthRequired})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}
