// Package totp implements RFC 6238 time-based one-time passwords for the
// authenticator-app verification channel: secret bundles, provisioning URIs,
// QR rendering, and drift-tolerant verification.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"time"

	"github.com/auth-api-nosql/internal/domain"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// Digits per code and seconds per time step, per the usual
	// authenticator-app defaults.
	Digits = 6
	Period = 30
	// Skew is the number of adjacent time steps accepted on either side of
	// "now" to absorb clock drift.
	Skew = 1

	secretLength = 20
	asciiCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	qrSize       = 256
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret creates a fresh TOTP secret bundle labelled
// "issuer (account)" for provisioning in an authenticator app.
func GenerateSecret(issuer, account string) (*domain.AppSecret, error) {
	raw := make([]byte, secretLength)
	max := big.NewInt(int64(len(asciiCharset)))
	for i := range raw {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, err
		}
		raw[i] = asciiCharset[idx.Int64()]
	}

	encoded := b32.EncodeToString(raw)
	label := fmt.Sprintf("%s (%s)", issuer, account)

	v := url.Values{}
	v.Set("secret", encoded)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(Period))
	v.Set("digits", strconv.Itoa(Digits))
	v.Set("algorithm", "SHA1")

	return &domain.AppSecret{
		ASCII:      string(raw),
		Hex:        hex.EncodeToString(raw),
		Base32:     encoded,
		OtpauthURL: "otpauth://totp/" + url.PathEscape(label) + "?" + v.Encode(),
	}, nil
}

// VerifyCode checks code against the base32-encoded secret at time now,
// accepting ±Skew time steps. Structurally malformed input (wrong length,
// non-digit characters) is rejected without touching the secret.
func VerifyCode(secretBase32, code string, now time.Time) (bool, error) {
	if len(code) != Digits || !isDigits(code) {
		return false, nil
	}
	secret, err := b32.DecodeString(secretBase32)
	if err != nil {
		return false, fmt.Errorf("decode totp secret: %w", err)
	}
	if len(secret) == 0 {
		return false, errors.New("empty totp secret")
	}

	baseCounter := now.Unix() / Period
	for step := int64(-Skew); step <= Skew; step++ {
		counter := baseCounter + step
		if counter < 0 {
			continue
		}
		generated := hotpCode(secret, counter)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(code)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// GenerateCode computes the code for the secret at time t. Exposed for
// enrollment confirmation screens and tests.
func GenerateCode(secretBase32 string, t time.Time) (string, error) {
	secret, err := b32.DecodeString(secretBase32)
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	return hotpCode(secret, t.Unix()/Period), nil
}

// QRDataURI renders the otpauth provisioning URI as a PNG data URI suitable
// for inline display. Purely derived; never persisted.
func QRDataURI(otpauthURL string) (string, error) {
	png, err := qrcode.Encode(otpauthURL, qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < Digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", Digits, bin%mod)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
