// Package users implements the user directory and the credential flows built on it.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew   = "users.service.new"
	opRegister     = "users.register"
	opLogin        = "users.login"
	opVerify       = "users.verify"
	opCurrentUser  = "users.current_user"
	opEmailExists  = "users.email_exists"
	queryEmail     = "email = ?"
	messageBadAuth = "Invalid email or password"

	// decoyPassword is hashed once at construction so unknown emails cost the same as wrong passwords.
	decoyPassword = "choreo-decoy-password"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingHasher   = errors.New("password hasher is required")
	errMissingTokens   = errors.New("token issuer is required")
	noOpLogger         = zap.NewNop()
)

// TokenIssuer signs and verifies identity tokens.
type TokenIssuer interface {
	IssueToken(ctx context.Context, userID uint, email string) (string, time.Time, error)
	ValidateToken(token string) (auth.Claims, error)
}

// ServiceConfig describes the dependencies required by the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Hasher   auth.PasswordHasher
	Tokens   TokenIssuer
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service registers users, authenticates them and resolves token holders.
type Service struct {
	db        *gorm.DB
	hasher    auth.PasswordHasher
	tokens    TokenIssuer
	now       func() time.Time
	logger    *zap.Logger
	decoyHash string
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Hasher == nil {
		return nil, apperrors.Internal(opServiceNew, "missing_hasher", errMissingHasher)
	}
	if cfg.Tokens == nil {
		return nil, apperrors.Internal(opServiceNew, "missing_tokens", errMissingTokens)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	decoyHash, err := cfg.Hasher.Hash(decoyPassword)
	if err != nil {
		return nil, apperrors.Internal(opServiceNew, "decoy_hash_failed", err)
	}
	return &Service{
		db:        cfg.Database,
		hasher:    cfg.Hasher,
		tokens:    cfg.Tokens,
		now:       clock,
		logger:    logger,
		decoyHash: decoyHash,
	}, nil
}

// Register creates a user and returns its profile with a fresh token.
// An email that is already registered (exact match) fails with Conflict.
func (s *Service) Register(ctx context.Context, input RegistrationInput) (Session, error) {
	exists, err := s.EmailExists(ctx, input.Email)
	if err != nil {
		return Session{}, err
	}
	if exists {
		return Session{}, apperrors.New(apperrors.ErrConflict, opRegister, "email_taken", "Email already registered")
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logError(opRegister, "hash_failed", err)
		return Session{}, apperrors.Internal(opRegister, "hash_failed", err)
	}

	user := User{
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Session{}, apperrors.Wrap(apperrors.ErrConflict, opRegister, "email_taken", "Email already registered", err)
		}
		s.logError(opRegister, "insert_failed", err, zap.String("email", input.Email))
		return Session{}, apperrors.Internal(opRegister, "insert_failed", err)
	}

	return s.openSession(ctx, opRegister, user)
}

// Login verifies credentials. Unknown emails and wrong passwords fail identically with Unauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	var user User
	err := s.db.WithContext(ctx).Where(queryEmail, email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.hasher.Verify(s.decoyHash, password)
		return Session{}, apperrors.New(apperrors.ErrUnauthorized, opLogin, "invalid_credentials", messageBadAuth)
	}
	if err != nil {
		s.logError(opLogin, "query_failed", err)
		return Session{}, apperrors.Internal(opLogin, "query_failed", err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return Session{}, apperrors.New(apperrors.ErrUnauthorized, opLogin, "invalid_credentials", messageBadAuth)
	}

	return s.openSession(ctx, opLogin, user)
}

// Verify validates a bearer token and returns its claims. It has no side effects.
func (s *Service) Verify(token string) (auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if apperrors.KindOf(err) == nil {
			return auth.Claims{}, apperrors.Wrap(apperrors.ErrUnauthorized, opVerify, "invalid_token", "Invalid or expired token", err)
		}
		return auth.Claims{}, err
	}
	return claims, nil
}

// CurrentUser resolves the profile for userID, failing with NotFound when the id no longer exists.
func (s *Service) CurrentUser(ctx context.Context, userID uint) (Profile, error) {
	var user User
	err := s.db.WithContext(ctx).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, apperrors.New(apperrors.ErrNotFound, opCurrentUser, "not_found", "User not found")
	}
	if err != nil {
		s.logError(opCurrentUser, "query_failed", err, zap.Uint("user_id", userID))
		return Profile{}, apperrors.Internal(opCurrentUser, "query_failed", err)
	}
	return user.Profile(), nil
}

// EmailExists reports whether a user with exactly this email is registered.
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where(queryEmail, email).Count(&count).Error; err != nil {
		s.logError(opEmailExists, "query_failed", err)
		return false, apperrors.Internal(opEmailExists, "query_failed", err)
	}
	return count > 0, nil
}

func (s *Service) openSession(ctx context.Context, operation string, user User) (Session, error) {
	token, expiresAt, err := s.tokens.IssueToken(ctx, user.ID, user.Email)
	if err != nil {
		s.logError(operation, "token_issue_failed", err, zap.Uint("user_id", user.ID))
		return Session{}, apperrors.Internal(operation, "token_issue_failed", err)
	}
	return Session{User: user.Profile(), Token: token, ExpiresAt: expiresAt}, nil
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
	s.logger.Error("users service error", attrs...)
}
