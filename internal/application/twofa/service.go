package twofa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/pkg/secret"
	"github.com/auth-api-nosql/internal/pkg/totp"
	"golang.org/x/crypto/bcrypt"
)

type SetRequest struct {
	Status     bool               `json:"status"`
	MethodType domain.TwoFAMethod `json:"methodType"`
	Password   string             `json:"password" validate:"required"`
}

type SendOTPRequest struct {
	Password string `json:"password" validate:"required"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// QRResult carries everything the client needs to finish authenticator
// enrollment: the QR image, the manual-entry key and the one-time recovery
// codes. Recovery codes are shown only at this moment.
type QRResult struct {
	QRCodeURL     string   `json:"qrCodeUrl"`
	SetupKey      string   `json:"setupKey"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

// VerifyResult is returned by VerifyToken and ValidateRecoveryCode. When
// NotActive is set the account has no active second factor and no tokens
// are issued.
type VerifyResult struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	SessionID    string `json:"-"`
	Role         string `json:"role,omitempty"`
	NotActive    bool   `json:"-"`
}

type Service interface {
	SetTwoFA(ctx context.Context, userID string, req SetRequest) (string, error)
	SendOTPToMail(ctx context.Context, userID, password string) error
	SendSMSCode(ctx context.Context, countryCode, phoneNumber string) error
	CreateQRCode(ctx context.Context, userID string) (*QRResult, error)
	IssueChallenge(ctx context.Context, u *domain.User, method domain.TwoFAMethod) error
	VerifyToken(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	ValidateRecoveryCode(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	ClearTwoFAOTP(ctx context.Context, userID, otp string) error
	ConsumeRecoveryCode(ctx context.Context, userID string, index int, code string) error
}

type mailer interface {
	SendBySlug(ctx context.Context, to, slug string, data map[string]string) error
}

type phoneVerifier interface {
	IssueChallenge(ctx context.Context, phone string) error
	CheckChallenge(ctx context.Context, phone, code string) (bool, error)
}

type sessionIssuer interface {
	IssueFor(ctx context.Context, u *domain.User) (bearer, refreshToken string, sess *domain.Session, err error)
}

type service struct {
	userRepo      userStore
	mailer        mailer
	phoneVerifier phoneVerifier
	sessions      sessionIssuer
	appName       string
	otpLength     int
	otpValidFor   time.Duration
	recoveryCount int
}

func NewService(
	userRepo userStore,
	mailer mailer,
	phoneVerifier phoneVerifier,
	sessions sessionIssuer,
	appName string,
	otpLength int,
	otpValidFor time.Duration,
	recoveryCount int,
) Service {
	return &service{
		userRepo:      userRepo,
		mailer:        mailer,
		phoneVerifier: phoneVerifier,
		sessions:      sessions,
		appName:       appName,
		otpLength:     otpLength,
		otpValidFor:   otpValidFor,
		recoveryCount: recoveryCount,
	}
}

// SetTwoFA turns two-factor auth on or off. Enabling replaces the preferred
// method list with the single chosen method; it never appends.
func (s *service) SetTwoFA(ctx context.Context, userID string, req SetRequest) (string, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", fmt.Errorf("%s: %w", domain.MsgIncorrectPass, domain.ErrUnauthorized)
	}

	if !req.Status {
		if err := s.userRepo.Update(ctx, userID, map[string]interface{}{
			"two_fa_enabled": false,
		}); err != nil {
			return "", err
		}
		return domain.MsgTwoFADeactivated, nil
	}

	if !req.MethodType.Valid() || req.MethodType == domain.MethodNone {
		return "", fmt.Errorf("%s: %w", domain.MsgInvalidMethod, domain.ErrBadRequest)
	}
	if req.MethodType == domain.MethodPhone && u.E164() == "" {
		return "", fmt.Errorf("%s: %w", domain.MsgPhoneActivation, domain.ErrBadRequest)
	}

	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{
		"two_fa_enabled":           true,
		"preferred_two_fa_methods": []domain.TwoFAMethodRef{{MethodType: req.MethodType}},
	}); err != nil {
		return "", err
	}
	return domain.MsgTwoFAActivated, nil
}

// SendOTPToMail emails a fresh OTP after re-checking the account password.
func (s *service) SendOTPToMail(ctx context.Context, userID, password string) error {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("%s: %w", domain.MsgIncorrectPass, domain.ErrUnauthorized)
	}
	return s.issueEmailChallenge(ctx, u)
}

// SendSMSCode sends a challenge code to a phone number that belongs to a
// registered account.
func (s *service) SendSMSCode(ctx context.Context, countryCode, phoneNumber string) error {
	phone := countryCode + phoneNumber
	if _, err := s.userRepo.GetByPhone(ctx, phoneNumber); err != nil {
		return fmt.Errorf("%s: %w", domain.MsgUserNotFound, domain.ErrNotFound)
	}
	return s.phoneVerifier.IssueChallenge(ctx, phone)
}

// CreateQRCode provisions an authenticator-app secret and a fresh batch of
// recovery codes, overwriting any previous enrollment.
func (s *service) CreateQRCode(ctx context.Context, userID string) (*QRResult, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	sec, err := totp.GenerateSecret(s.appName, u.Email)
	if err != nil {
		return nil, err
	}
	codes, err := secret.GenerateRecoveryCodes(s.recoveryCount)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{
		"app_token":      sec,
		"recovery_codes": codes,
	}); err != nil {
		return nil, err
	}
	qr, err := totp.QRDataURI(sec.OtpauthURL)
	if err != nil {
		return nil, err
	}
	plain := make([]string, len(codes))
	for i, c := range codes {
		plain[i] = c.Code
	}
	return &QRResult{QRCodeURL: qr, SetupKey: sec.Base32, RecoveryCodes: plain}, nil
}

// IssueChallenge kicks off the second factor for the given method. The app
// method needs no server-side action: the authenticator generates codes
// offline.
func (s *service) IssueChallenge(ctx context.Context, u *domain.User, method domain.TwoFAMethod) error {
	switch method {
	case domain.MethodEmail:
		return s.issueEmailChallenge(ctx, u)
	case domain.MethodPhone:
		if u.E164() == "" {
			return fmt.Errorf("%s: %w", domain.MsgPhoneActivation, domain.ErrBadRequest)
		}
		return s.phoneVerifier.IssueChallenge(ctx, u.E164())
	case domain.MethodApp:
		return nil
	default:
		return fmt.Errorf("%s: %w", domain.MsgInvalidMethod, domain.ErrBadRequest)
	}
}

func (s *service) issueEmailChallenge(ctx context.Context, u *domain.User) error {
	otp, err := secret.GenerateOTP(s.otpLength, secret.DigitCharset)
	if err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		"two_fa_otp": otp,
	}); err != nil {
		return err
	}
	return s.mailer.SendBySlug(ctx, u.Email, domain.TemplateVerifyOTP, map[string]string{
		"name":         u.Name,
		"otp":          otp,
		"otpValidTime": strconv.Itoa(int(s.otpValidFor.Minutes())),
	})
}

// VerifyToken checks a second-factor code and, on success, opens a session.
// The code is interpreted according to the account's resolved method.
func (s *service) VerifyToken(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgUserNotFound, domain.ErrNotFound)
	}
	if !u.TwoFAEnabled {
		return &VerifyResult{NotActive: true}, nil
	}

	method := domain.ResolveTwoFAMethod(u)
	switch method {
	case domain.MethodEmail:
		if len(req.Code) != s.otpLength || !secret.InCharset(req.Code, secret.DigitCharset) {
			return nil, fmt.Errorf("%s: %w", domain.MsgInvalidOTP, domain.ErrUnauthorized)
		}
		if u.TwoFAOTP == "" || u.TwoFAOTP != req.Code {
			return nil, fmt.Errorf("%s: %w", domain.MsgInvalidOTP, domain.ErrUnauthorized)
		}
		if err := s.userRepo.ClearTwoFAOTP(ctx, u.UserID, req.Code); err != nil {
			return nil, fmt.Errorf("%s: %w", domain.MsgInvalidOTP, domain.ErrUnauthorized)
		}
	case domain.MethodPhone:
		ok, err := s.phoneVerifier.CheckChallenge(ctx, u.E164(), req.Code)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", domain.MsgInvalidOTP, domain.ErrUnauthorized)
		}
	case domain.MethodApp:
		if u.AppToken == nil {
			return nil, fmt.Errorf("%s: %w", domain.MsgInvalidMethod, domain.ErrBadRequest)
		}
		ok, err := totp.VerifyCode(u.AppToken.Base32, req.Code, time.Now())
		if err != nil || !ok {
			return nil, fmt.Errorf("%s: %w", domain.MsgInvalidOTP, domain.ErrUnauthorized)
		}
	default:
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidMethod, domain.ErrBadRequest)
	}

	bearer, refresh, sess, err := s.sessions.IssueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Token:        bearer,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
		Role:         u.Role,
	}, nil
}

// ValidateRecoveryCode spends one unused recovery code and opens a session.
// Matching is exact: a code is either one of the issued strings or it is
// rejected.
func (s *service) ValidateRecoveryCode(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgUserNotFound, domain.ErrNotFound)
	}
	if !u.TwoFAEnabled {
		return &VerifyResult{NotActive: true}, nil
	}

	idx := -1
	for i, c := range u.RecoveryCodes {
		if !c.Used && c.Code == req.Code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidRecovery, domain.ErrUnauthorized)
	}
	if err := s.userRepo.ConsumeRecoveryCode(ctx, u.UserID, idx, req.Code); err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidRecovery, domain.ErrUnauthorized)
	}

	bearer, refresh, sess, err := s.sessions.IssueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Token:        bearer,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
		Role:         u.Role,
	}, nil
}
