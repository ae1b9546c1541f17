package domain

// EmailTemplate is one stored HTML mail body, keyed by slug.
// Placeholders of the form {name}, {link}, {otp} are substituted at send time.
type EmailTemplate struct {
	Slug     string `json:"slug" dynamodbav:"slug"`
	Subject  string `json:"subject" dynamodbav:"subject"`
	HTML     string `json:"html" dynamodbav:"html"`
	IsActive bool   `json:"is_active" dynamodbav:"is_active"`
}

// Template slugs consumed by the auth and 2FA flows.
const (
	TemplateSetPassword   = "set-password"
	TemplateResetPassword = "reset-password"
	TemplateVerifyEmail   = "verify-email"
	TemplateVerifyOTP     = "verify-otp"
)
