package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSigningSecret = "super-secret"
	testIssuer        = "choreo-auth"
	testAudience      = "choreo-api"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssuesTokensWithIdentityClaims(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return now })

	tokenString, expiresAt, err := issuer.IssueToken(context.Background(), 42, "a@x.com")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !expiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expected 24h expiry, got %s", expiresAt)
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithTimeFunc(func() time.Time { return now }))
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSigningSecret), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "a@x.com" {
		t.Fatalf("unexpected identity claims %+v", claims)
	}
	if claims.Subject != "42" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != testIssuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != testAudience {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, _, err := issuer.IssueToken(context.Background(), 7, "b@x.com")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	claims, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "b@x.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	_, err = issuer.ValidateToken("invalid.token")
	if !errors.Is(err, apperrors.ErrUnauthorized) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unauthorized invalid token error, got %v", err)
	}

	_, err = issuer.ValidateToken("   ")
	if !errors.Is(err, apperrors.ErrUnauthorized) || !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected unauthorized missing token error, got %v", err)
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := issuedAt
	issuer := newTestIssuer(t, func() time.Time { return current })

	tokenString, _, err := issuer.IssueToken(context.Background(), 3, "c@x.com")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	current = issuedAt.Add(25 * time.Hour)
	_, err = issuer.ValidateToken(tokenString)
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized kind, got %v", err)
	}
	if !errors.Is(err, ErrExpiredToken) || !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired token cause, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignSignatures(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	foreign, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("someone-else"),
		Issuer:        testIssuer,
		Audience:      testAudience,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	tokenString, _, err := foreign.IssueToken(context.Background(), 9, "d@x.com")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if _, err := issuer.ValidateToken(tokenString); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}
}

func TestTokenIssuerRejectsUnsignedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    testIssuer,
			Audience:  []string{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign none token: %v", err)
	}
	if _, err := issuer.ValidateToken(signed); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unsigned token to be rejected, got %v", err)
	}
}

func TestNewTokenIssuerRequiresConfiguration(t *testing.T) {
	testCases := []struct {
		name    string
		config  TokenIssuerConfig
		wantErr error
	}{
		{
			name:    "missing-secret",
			config:  TokenIssuerConfig{Issuer: testIssuer, Audience: testAudience},
			wantErr: ErrMissingSigningSecret,
		},
		{
			name:    "missing-issuer",
			config:  TokenIssuerConfig{SigningSecret: []byte("secret"), Audience: testAudience},
			wantErr: ErrMissingIssuer,
		},
		{
			name:    "blank-audience",
			config:  TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: testIssuer, Audience: " "},
			wantErr: ErrMissingAudience,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := NewTokenIssuer(testCase.config); !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}
