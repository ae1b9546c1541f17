package sns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/pkg/secret"
)

type verificationStore interface {
	Put(ctx context.Context, v *domain.PhoneVerification) error
	Consume(ctx context.Context, phone, code string) (bool, error)
}

// PhoneVerifier issues and checks SMS one-time codes. Codes are stored
// keyed by phone number with a TTL, so an unanswered challenge simply ages
// out of the table.
type PhoneVerifier struct {
	sms       SMSSender
	store     verificationStore
	otpLength int
	validFor  time.Duration
}

func NewPhoneVerifier(sms SMSSender, store verificationStore, otpLength int, validFor time.Duration) *PhoneVerifier {
	return &PhoneVerifier{sms: sms, store: store, otpLength: otpLength, validFor: validFor}
}

// IssueChallenge generates a fresh code, stores it and sends it to the
// number. Re-issuing overwrites any pending code for the same number.
func (v *PhoneVerifier) IssueChallenge(ctx context.Context, phone string) error {
	if v == nil || v.sms == nil {
		return errors.New("sms delivery is not configured")
	}
	code, err := secret.GenerateOTP(v.otpLength, secret.DigitCharset)
	if err != nil {
		return err
	}
	record := &domain.PhoneVerification{
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(v.validFor).Unix(),
	}
	if err := v.store.Put(ctx, record); err != nil {
		return err
	}
	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(v.validFor.Minutes()))
	return v.sms.SendSMS(ctx, phone, msg)
}

// CheckChallenge reports whether code matches the pending challenge for the
// number. Matching and consumption are one conditional delete, so two
// concurrent checks of the same code cannot both pass.
func (v *PhoneVerifier) CheckChallenge(ctx context.Context, phone, code string) (bool, error) {
	return v.store.Consume(ctx, phone, code)
}
