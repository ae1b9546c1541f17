package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/auth-api-nosql/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. Session tokens authorize API calls; verify-email tokens
// are single-purpose links and are rejected by the auth middleware.
const (
	PurposeSession     = "session"
	PurposeVerifyEmail = "verify_email"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey        *rsa.PrivateKey
	publicKey         *rsa.PublicKey
	sessionExpiry     time.Duration
	verifyEmailExpiry time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey:        privKey,
		publicKey:         pubKey,
		sessionExpiry:     cfg.JWTExpiry,
		verifyEmailExpiry: cfg.VerifyEmailExpiry,
	}, nil
}

func (p *Provider) SignSession(userID, email, role, sessionID string) (string, error) {
	return p.sign(Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		Purpose:   PurposeSession,
	}, p.sessionExpiry)
}

func (p *Provider) SignVerifyEmail(userID, email, role string) (string, error) {
	return p.sign(Claims{
		UserID:  userID,
		Email:   email,
		Role:    role,
		Purpose: PurposeVerifyEmail,
	}, p.verifyEmailExpiry)
}

func (p *Provider) sign(claims Claims, expiry time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// Verify parses and validates a token of either purpose. Callers that care
// about expiry specifically can test the returned error against
// jwt.ErrTokenExpired.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
