package domain

// TwoFAMethod tags one of the three verification channels (plus "none",
// the default for accounts that never picked a method).
type TwoFAMethod string

const (
	MethodEmail TwoFAMethod = "email"
	MethodPhone TwoFAMethod = "phone"
	MethodApp   TwoFAMethod = "app"
	MethodNone  TwoFAMethod = "none"
)

// Valid reports whether m names a real verification channel.
func (m TwoFAMethod) Valid() bool {
	return m == MethodEmail || m == MethodPhone || m == MethodApp
}

// LoginMethodPriority is the fixed tie-break order used at login dispatch
// time. It wins over the storage order of the account's own method list.
var LoginMethodPriority = []TwoFAMethod{MethodEmail, MethodPhone, MethodApp}

// TwoFAMethodRef is one entry of an account's preferred-method list.
type TwoFAMethodRef struct {
	MethodType TwoFAMethod `json:"methodType" dynamodbav:"method_type"`
}

// ResolveTwoFAMethod returns the authoritative method for u: the first entry
// of LoginMethodPriority present in the account's preferred list. Returns
// MethodNone when nothing matches.
func ResolveTwoFAMethod(u *User) TwoFAMethod {
	for _, m := range LoginMethodPriority {
		for _, ref := range u.PreferredTwoFAMethods {
			if ref.MethodType == m {
				return m
			}
		}
	}
	return MethodNone
}

// AppSecret is the TOTP secret bundle stored when the APP method is enrolled.
type AppSecret struct {
	ASCII      string `json:"ascii" dynamodbav:"ascii"`
	Hex        string `json:"hex" dynamodbav:"hex"`
	Base32     string `json:"base32" dynamodbav:"base32"`
	OtpauthURL string `json:"otpauth_url" dynamodbav:"otpauth_url"`
}

// RecoveryCode is a single-use backup credential. Consumed codes are flagged,
// never removed, so the list doubles as an audit trail.
type RecoveryCode struct {
	Code string `json:"code" dynamodbav:"code"`
	Used bool   `json:"used" dynamodbav:"used"`
}

// PhoneVerification stores one outstanding SMS challenge code.
// PK: phone (E.164). ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type PhoneVerification struct {
	Phone     string `json:"phone" dynamodbav:"phone"`
	Code      string `json:"code" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}
