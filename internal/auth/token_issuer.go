package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 24 * time.Hour

	opIssueToken    = "auth.issue_token"
	opValidateToken = "auth.validate_token"

	messageInvalidToken = "Invalid or expired token"
)

var (
	ErrMissingSigningSecret = errors.New("token issuer: signing secret required")
	ErrMissingIssuer        = errors.New("token issuer: issuer required")
	ErrMissingAudience      = errors.New("token issuer: audience required")
	ErrMissingToken         = errors.New("token issuer: token required")
	ErrInvalidToken         = errors.New("token issuer: invalid token")
	ErrExpiredToken         = errors.New("token issuer: token expired")
	ErrMissingSubject       = errors.New("token issuer: subject required")
)

// Claims is the identity payload embedded in issued tokens.
type Claims struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the backend JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates HS256 bearer tokens.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	audience      string
	ttl           time.Duration
	clock         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer; the TTL defaults to 24 hours.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, ErrMissingAudience
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		audience:      audience,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// IssueToken produces a signed token for the user and returns it with its expiry.
func (i *TokenIssuer) IssueToken(_ context.Context, userID uint, email string) (string, time.Time, error) {
	if userID == 0 {
		return "", time.Time{}, apperrors.Internal(opIssueToken, "missing_subject", ErrMissingSubject)
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, apperrors.Internal(opIssueToken, "sign_failed", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, algorithm, issuer, audience and expiry, and returns the claims.
// Every failure is reported with the Unauthorized kind.
func (i *TokenIssuer) ValidateToken(tokenString string) (Claims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Claims{}, apperrors.Wrap(apperrors.ErrUnauthorized, opValidateToken, "missing_token", "Authentication required", ErrMissingToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return i.signingSecret, nil
		},
		jwt.WithAudience(i.audience),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.Wrap(apperrors.ErrUnauthorized, opValidateToken, "expired", messageInvalidToken, fmt.Errorf("%w: %w", ErrExpiredToken, err))
		}
		return Claims{}, apperrors.Wrap(apperrors.ErrUnauthorized, opValidateToken, "invalid", messageInvalidToken, fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	if parsed == nil || !parsed.Valid {
		return Claims{}, apperrors.Wrap(apperrors.ErrUnauthorized, opValidateToken, "invalid", messageInvalidToken, ErrInvalidToken)
	}
	if claims.UserID == 0 || claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return Claims{}, apperrors.Wrap(apperrors.ErrUnauthorized, opValidateToken, "missing_subject", messageInvalidToken, ErrMissingSubject)
	}
	return *claims, nil
}
