package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Account lifecycle status. Accounts are created Inactive and become Active
// on email verification (or immediately for SSO sign-ups).
const (
	StatusInactive = 0
	StatusActive   = 1
)

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

type User struct {
	UserID       string  `json:"id" dynamodbav:"user_id"`
	Name         string  `json:"name" dynamodbav:"name"`
	Email        string  `json:"email" dynamodbav:"email"`
	PhoneNumber  *string `json:"phone_number" dynamodbav:"phone_number"`
	CountryCode  *string `json:"country_code" dynamodbav:"country_code"`
	PasswordHash string  `json:"-" dynamodbav:"password_hash"`
	Role         string  `json:"role" dynamodbav:"role"`
	Status       int     `json:"status" dynamodbav:"status"`
	AuthProvider string  `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "local" | "google"
	GoogleSub    string  `json:"-" dynamodbav:"google_sub"`

	// Reset material: only the sha256 of the emailed token is persisted.
	ResetPasswordToken  string `json:"-" dynamodbav:"reset_password_token"`
	ResetPasswordExpire int64  `json:"-" dynamodbav:"reset_password_expire"` // Unix seconds, 0 when unset

	TwoFAEnabled          bool            `json:"is_two_auth_enabled" dynamodbav:"two_fa_enabled"`
	PreferredTwoFAMethods []TwoFAMethodRef `json:"preferred_two_fa_methods" dynamodbav:"preferred_two_fa_methods"`
	AppToken              *AppSecret      `json:"-" dynamodbav:"app_token"`
	TwoFAOTP              string          `json:"-" dynamodbav:"two_fa_otp"`
	RecoveryCodes         []RecoveryCode  `json:"-" dynamodbav:"recovery_codes"`

	IsDeleted bool      `json:"is_deleted" dynamodbav:"is_deleted"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// E164 returns the account's full phone number (country code + national
// number, no separators), or "" when either part is missing.
func (u *User) E164() string {
	if u.CountryCode == nil || u.PhoneNumber == nil {
		return ""
	}
	return *u.CountryCode + *u.PhoneNumber
}

type RegisterRequest struct {
	Name        string  `json:"name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber *string `json:"phone_number"`
	CountryCode *string `json:"country_code"`
}

type UpdateProfileRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	CountryCode *string `json:"country_code"`
}
