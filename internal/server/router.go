package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/access"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/auth"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/routines"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	userIDContextKey   = "choreo_user_id"
	profileContextKey  = "choreo_profile"
	resourceContextKey = "choreo_resource"

	opAuthorize = "server.authorize"

	messageAuthRequired = "Authentication required"
	messageInvalidToken = "Invalid or expired token"
	messageUserNotFound = "User not found"
)

var (
	errMissingAccounts = errors.New("account service dependency required")
	errMissingMoves    = errors.New("move service dependency required")
	errMissingRoutines = errors.New("routine service dependency required")
)

// AccountService registers, authenticates and resolves users.
type AccountService interface {
	Register(ctx context.Context, input users.RegistrationInput) (users.Session, error)
	Login(ctx context.Context, email, password string) (users.Session, error)
	Verify(token string) (auth.Claims, error)
	CurrentUser(ctx context.Context, userID uint) (users.Profile, error)
}

// Dependencies wires the HTTP boundary to the services.
type Dependencies struct {
	Accounts    AccountService
	Moves       *moves.Service
	Routines    *routines.Service
	Logger      *zap.Logger
	CORSOrigins []string
	RateLimit   RateLimitConfig
	Metrics     *Metrics
}

// NewHTTPHandler assembles the router: middleware, public routes and the authenticated API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Moves == nil {
		return nil, errMissingMoves
	}
	if deps.Routines == nil {
		return nil, errMissingRoutines
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(metrics.middleware())
	router.Use(corsMiddleware(origins))
	if deps.RateLimit.Requests > 0 && deps.RateLimit.Window > 0 {
		router.Use(newRateLimiter(deps.RateLimit, logger).middleware())
	}

	handler := &httpHandler{
		accounts:    deps.Accounts,
		moves:       deps.Moves,
		routines:    deps.Routines,
		composition: deps.Routines.Composition(),
		logger:      logger,
	}

	router.GET("/health", handleHealth)
	router.GET("/metrics", metrics.handler())
	router.NoRoute(handleRouteNotFound)

	api := router.Group("/api")
	api.POST("/auth/register", handler.handleRegister)
	api.POST("/auth/login", handler.handleLogin)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/auth/me", handler.handleCurrentUser)

	protected.GET("/moves", handler.handleListMoves)
	protected.GET("/moves/:id", handler.handleGetMove)
	protected.POST("/moves", handler.handleCreateMove)
	protected.PUT("/moves/:id", requireOwner[moves.Move](handler, deps.Moves.GetByID), handler.handleUpdateMove)
	protected.DELETE("/moves/:id", requireOwner[moves.Move](handler, deps.Moves.GetByID), handler.handleDeleteMove)

	protected.GET("/routines", handler.handleListRoutines)
	protected.GET("/routines/:id", handler.handleGetRoutine)
	protected.POST("/routines", handler.handleCreateRoutine)
	protected.PUT("/routines/:id", requireOwner[routines.Routine](handler, deps.Routines.Find), handler.handleUpdateRoutine)
	protected.DELETE("/routines/:id", requireOwner[routines.Routine](handler, deps.Routines.Find), handler.handleDeleteRoutine)

	protected.GET("/routines/:id/moves", handler.handleListRoutineMoves)
	protected.POST("/routines/:id/moves", handler.handleAddRoutineMove)
	protected.PUT("/routines/:id/moves/:moveId", handler.handleUpdateRoutineMove)
	protected.DELETE("/routines/:id/moves/:moveId", handler.handleRemoveRoutineMove)

	return router, nil
}

type httpHandler struct {
	accounts    AccountService
	moves       *moves.Service
	routines    *routines.Service
	composition *routines.Composition
	logger      *zap.Logger
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
}

func handleRouteNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "path": c.Request.URL.RequestURI()})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if !strings.HasPrefix(header, "Bearer ") || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": messageAuthRequired})
		return
	}

	claims, err := h.accounts.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		if apperrors.KindOf(err) == nil {
			err = apperrors.Wrap(apperrors.ErrUnauthorized, opAuthorize, "invalid_token", messageInvalidToken, err)
		}
		h.respondError(c, err)
		return
	}

	profile, err := h.accounts.CurrentUser(c.Request.Context(), claims.UserID)
	if err != nil {
		if isNotFound(err) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": messageUserNotFound})
			return
		}
		h.respondError(c, err)
		return
	}

	c.Set(userIDContextKey, profile.ID)
	c.Set(profileContextKey, profile)
	c.Next()
}

// requireOwner loads the resource named by the :id parameter and admits only its owner.
func requireOwner[T access.Owned](h *httpHandler, load access.Accessor[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		resource, err := access.Authorize(c.Request.Context(), actingUserID(c), id, load)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Set(resourceContextKey, resource)
		c.Next()
	}
}

func actingUserID(c *gin.Context) uint {
	return c.GetUint(userIDContextKey)
}
