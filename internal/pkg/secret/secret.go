// Package secret produces the random material consumed by the verification
// and reset flows: one-time passwords, hashed reset tokens, single-use
// recovery codes, and opaque refresh tokens.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/auth-api-nosql/internal/domain"
)

// DigitCharset is the default OTP alphabet.
const DigitCharset = "0123456789"

const (
	resetTokenBytes   = 32
	recoveryCodeBytes = 4
)

// GenerateOTP draws length characters uniformly from charset.
// Length must be positive; generation cannot otherwise fail meaningfully,
// so there are no retries.
func GenerateOTP(length int, charset string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be greater than zero: %w", domain.ErrBadRequest)
	}
	if charset == "" {
		charset = DigitCharset
	}
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(charset[idx.Int64()])
	}
	return b.String(), nil
}

// InCharset reports whether every character of s belongs to charset.
func InCharset(s, charset string) bool {
	for _, c := range s {
		if !strings.ContainsRune(charset, c) {
			return false
		}
	}
	return true
}

// GenerateResetToken returns the raw token to email to the user, the sha256
// hex digest to persist, and the absolute expiry. The raw token is never
// stored.
func GenerateResetToken(ttl time.Duration) (token, hashedToken string, expire time.Time, err error) {
	raw := make([]byte, resetTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	token = hex.EncodeToString(raw)
	return token, HashToken(token), time.Now().UTC().Add(ttl), nil
}

// HashToken returns the sha256 hex digest of a raw token, the only form that
// is ever persisted or looked up.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateRecoveryCodes returns count fresh, unused backup codes. Each code is
// an uppercase hex string drawn from a cryptographically strong source.
func GenerateRecoveryCodes(count int) ([]domain.RecoveryCode, error) {
	codes := make([]domain.RecoveryCode, 0, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, recoveryCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		codes = append(codes, domain.RecoveryCode{
			Code: strings.ToUpper(hex.EncodeToString(raw)),
		})
	}
	return codes, nil
}

// NewRefreshToken generates a cryptographically random 64-character hex token.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
