package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/auth-api-nosql/internal/domain"
	googleauth "github.com/auth-api-nosql/internal/infrastructure/google"
	jwtinfra "github.com/auth-api-nosql/internal/infrastructure/jwt"
	"github.com/auth-api-nosql/internal/pkg/id"
	"github.com/auth-api-nosql/internal/pkg/secret"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// LoginResult describes the outcome of a credential check. When a second
// factor is pending, TwoFAEnabled is set, PreferredTwoFAMethods names the
// factor that was triggered and Token serializes as an explicit null so the
// client can tell the challenge state from a plain success.
type LoginResult struct {
	Token                 *string                `json:"token"`
	RefreshToken          string                 `json:"refreshToken,omitempty"`
	SessionID             string                 `json:"-"`
	Role                  string                 `json:"role"`
	TwoFAEnabled          bool                   `json:"is_two_auth_enabled"`
	PreferredTwoFAMethods *domain.TwoFAMethodRef `json:"preferredTwoFAMethods,omitempty"`
}

// VerifyEmailResult distinguishes a first-time activation from a repeat
// click on the same link.
type VerifyEmailResult struct {
	AlreadyVerified bool
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error)
	ResendVerification(ctx context.Context, email string) (*VerifyEmailResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error)
	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetToken(ctx context.Context, hashedToken string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	ConsumeResetToken(ctx context.Context, userID, hashedToken, newPasswordHash string) error
	Delete(ctx context.Context, userID string) error
}

type mailer interface {
	SendBySlug(ctx context.Context, to, slug string, data map[string]string) error
}

type jwtProvider interface {
	SignVerifyEmail(userID, email, role string) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*googleauth.Payload, error)
}

type sessionIssuer interface {
	IssueFor(ctx context.Context, u *domain.User) (bearer, refreshToken string, sess *domain.Session, err error)
}

type challengeIssuer interface {
	IssueChallenge(ctx context.Context, u *domain.User, method domain.TwoFAMethod) error
}

type service struct {
	userRepo          userStore
	mailer            mailer
	jwt               jwtProvider
	google            googleVerifier
	sessions          sessionIssuer
	twofa             challengeIssuer
	appBaseURL        string
	verifyEmailExpiry time.Duration
	resetTokenExpire  time.Duration
}

func NewService(
	userRepo userStore,
	mailer mailer,
	jwt jwtProvider,
	google googleVerifier,
	sessions sessionIssuer,
	twofa challengeIssuer,
	appBaseURL string,
	verifyEmailExpiry time.Duration,
	resetTokenExpire time.Duration,
) Service {
	return &service{
		userRepo:          userRepo,
		mailer:            mailer,
		jwt:               jwt,
		google:            google,
		sessions:          sessions,
		twofa:             twofa,
		appBaseURL:        appBaseURL,
		verifyEmailExpiry: verifyEmailExpiry,
		resetTokenExpire:  resetTokenExpire,
	}
}

// Register creates an inactive account and emails a verification link. If
// the email cannot be dispatched the account is removed again, so a failed
// registration can simply be retried.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := s.userRepo.GetByEmail(ctx, email); err == nil && !existing.IsDeleted {
		return nil, fmt.Errorf("%s: %w", domain.MsgUserExists, domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        email,
		PhoneNumber:  req.PhoneNumber,
		CountryCode:  req.CountryCode,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Status:       domain.StatusInactive,
		AuthProvider: domain.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, err
	}

	token, err := s.jwt.SignVerifyEmail(u.UserID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	if err := s.sendLinkMail(ctx, u, domain.TemplateVerifyEmail, token, s.verifyEmailExpiry); err != nil {
		// Roll the account back so the address is free for another attempt.
		_ = s.userRepo.Delete(ctx, u.UserID)
		return nil, fmt.Errorf("%s: %w", domain.MsgEmailNotSent, err)
	}
	return u, nil
}

// VerifyEmail activates the account behind a verification link. Repeating
// the click is harmless and reported as such.
func (s *service) VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", domain.MsgSessionTimeout, domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidToken, domain.ErrUnauthorized)
	}
	if claims.Purpose != jwtinfra.PurposeVerifyEmail {
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidToken, domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgUserNotFound, domain.ErrNotFound)
	}
	if u.Status == domain.StatusActive {
		return &VerifyEmailResult{AlreadyVerified: true}, nil
	}
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		"status": domain.StatusActive,
	}); err != nil {
		return nil, err
	}
	return &VerifyEmailResult{}, nil
}

func (s *service) ResendVerification(ctx context.Context, email string) (*VerifyEmailResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgUserNotFound, domain.ErrNotFound)
	}
	if u.Status == domain.StatusActive {
		return &VerifyEmailResult{AlreadyVerified: true}, nil
	}
	token, err := s.jwt.SignVerifyEmail(u.UserID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	if err := s.sendLinkMail(ctx, u, domain.TemplateVerifyEmail, token, s.verifyEmailExpiry); err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgEmailNotSent, err)
	}
	return &VerifyEmailResult{}, nil
}

// Login checks credentials and either opens a session or triggers the
// account's second factor. An unverified account is rejected before the
// password is even looked at a second time.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || u.IsDeleted {
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidCreds, domain.ErrUnauthorized)
	}
	if u.Status != domain.StatusActive {
		return nil, fmt.Errorf("%s: %w", domain.MsgUnverifiedEmail, domain.ErrEmailNotVerified)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidCreds, domain.ErrUnauthorized)
	}
	return s.finishLogin(ctx, u)
}

// LoginWithGoogle signs a user in with a Google ID token, provisioning the
// account on first sight. Google-verified addresses skip email activation.
func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	payload, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if !payload.EmailVerified {
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidToken, domain.ErrUnauthorized)
	}
	email := strings.ToLower(payload.Email)

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		now := time.Now().UTC()
		u = &domain.User{
			UserID:       id.New(),
			Name:         payload.Name,
			Email:        email,
			Role:         domain.RoleUser,
			Status:       domain.StatusActive,
			AuthProvider: domain.AuthProviderGoogle,
			GoogleSub:    payload.Sub,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.Put(ctx, u); err != nil {
			return nil, err
		}
		return s.finishLogin(ctx, u)
	}

	updates := map[string]interface{}{}
	if u.GoogleSub == "" {
		updates["google_sub"] = payload.Sub
	}
	if u.Status != domain.StatusActive {
		updates["status"] = domain.StatusActive
		u.Status = domain.StatusActive
	}
	if len(updates) > 0 {
		if err := s.userRepo.Update(ctx, u.UserID, updates); err != nil {
			return nil, err
		}
	}
	return s.finishLogin(ctx, u)
}

func (s *service) finishLogin(ctx context.Context, u *domain.User) (*LoginResult, error) {
	if u.TwoFAEnabled {
		method := domain.ResolveTwoFAMethod(u)
		if method == domain.MethodNone {
			return &LoginResult{TwoFAEnabled: true, Role: u.Role},
				fmt.Errorf("%s: %w", domain.MsgInvalidMethod, domain.ErrNoTwoFAMethod)
		}
		if err := s.twofa.IssueChallenge(ctx, u, method); err != nil {
			return nil, err
		}
		return &LoginResult{
			TwoFAEnabled:          true,
			Role:                  u.Role,
			PreferredTwoFAMethods: &domain.TwoFAMethodRef{MethodType: method},
		}, nil
	}

	bearer, refresh, sess, err := s.sessions.IssueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:        &bearer,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
		Role:         u.Role,
	}, nil
}

// ForgetPassword mails a reset link. Unknown, deleted and inactive accounts
// yield the same silent success so the endpoint does not reveal which
// addresses exist.
func (s *service) ForgetPassword(ctx context.Context, email string) error {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || u.IsDeleted || u.Status != domain.StatusActive {
		return nil
	}

	token, hashedToken, expire, err := secret.GenerateResetToken(s.resetTokenExpire)
	if err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		"reset_password_token":  hashedToken,
		"reset_password_expire": expire.Unix(),
	}); err != nil {
		return err
	}
	if err := s.sendLinkMail(ctx, u, domain.TemplateResetPassword, token, s.resetTokenExpire); err != nil {
		return fmt.Errorf("%s: %w", domain.MsgEmailNotSent, err)
	}
	return nil
}

// ResetPassword spends a reset token and installs the new password. The
// swap is conditional on the stored token, so each link works exactly once.
func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashedToken := secret.HashToken(token)
	u, err := s.userRepo.GetByResetToken(ctx, hashedToken)
	if err != nil {
		return fmt.Errorf("%s: %w", domain.MsgInvalidToken, domain.ErrUnauthorized)
	}
	if u.ResetPasswordExpire < time.Now().Unix() {
		return fmt.Errorf("%s: %w", domain.MsgInvalidToken, domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.ConsumeResetToken(ctx, u.UserID, hashedToken, string(hash))
}

func (s *service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("%s: %w", domain.MsgIncorrectPass, domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.Update(ctx, userID, map[string]interface{}{
		"password_hash": string(hash),
	})
}

func (s *service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, fmt.Errorf("%s: %w", domain.MsgUserNotFound, domain.ErrNotFound)
	}
	return u, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if other, err := s.userRepo.GetByEmail(ctx, email); err == nil && other.UserID != userID && !other.IsDeleted {
			return nil, fmt.Errorf("%s: %w", domain.MsgUserExists, domain.ErrConflict)
		}
		updates["email"] = email
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.CountryCode != nil {
		updates["country_code"] = *req.CountryCode
	}
	if len(updates) > 0 {
		if err := s.userRepo.Update(ctx, userID, updates); err != nil {
			return nil, err
		}
	}
	return s.userRepo.Get(ctx, userID)
}

func (s *service) sendLinkMail(ctx context.Context, u *domain.User, slug, token string, ttl time.Duration) error {
	var path string
	switch slug {
	case domain.TemplateResetPassword:
		path = "/reset-password"
	case domain.TemplateSetPassword:
		path = "/set-password"
	default:
		path = "/verify-email"
	}
	expire, unit, plural := expireVars(ttl)
	return s.mailer.SendBySlug(ctx, u.Email, slug, map[string]string{
		"name":   u.Name,
		"link":   s.appBaseURL + path + "?token=" + token,
		"expire": expire,
		"unit":   unit,
		"plural": plural,
	})
}

// expireVars renders a TTL as template fields, e.g. 15m becomes
// ("15", "minute", "s") and 1h becomes ("1", "hour", "").
func expireVars(d time.Duration) (expire, unit, plural string) {
	n := int(d.Minutes())
	unit = "minute"
	if n >= 60 && n%60 == 0 {
		n = n / 60
		unit = "hour"
	}
	if n != 1 {
		plural = "s"
	}
	return strconv.Itoa(n), unit, plural
}
