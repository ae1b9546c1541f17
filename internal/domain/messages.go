package domain

// User-facing response messages. Kept in one place so the API wording stays
// consistent across handlers.
const (
	MsgLoginSuccess     = "Login successful."
	MsgUserVerifyEmail  = "Please check your email to verify your account."
	MsgUserVerified     = "User already verified."
	MsgVerifyEmailOK    = "Email verified successfully. You can now log in."
	MsgUnverifiedEmail  = "Your email is not verified. Please verify your email to log in."
	MsgLogoutSuccess    = "User logged out successfully."
	MsgPasswordChanged  = "Password changed successfully."
	MsgShareResetLink   = "If that email is registered, a reset link has been sent."
	MsgEmailNotSent     = "Email could not be sent."
	MsgUserNotFound     = "User not found."
	MsgUserExists       = "User already exists."
	MsgInvalidCreds     = "Invalid credentials."
	MsgInvalidToken     = "Invalid token."
	MsgSessionTimeout   = "Session expired. Please request a new link."
	MsgUserProfile      = "User profile get successfully."
	MsgUpdateProfile    = "User profile updated successfully."
	MsgIncorrectPass    = "Incorrect password."

	MsgTwoFAActivated   = "TwoFA activated successfully. Keep your authentication device accessible."
	MsgTwoFADeactivated = "TwoFA deactivated successfully. Your account is no longer protected by two-factor authentication."
	MsgTwoFANotActive   = "TwoFA is not activated on your account. Please enable it for added security."
	MsgInvalidMethod    = "Invalid twoFA method."
	MsgCodeToEmail      = "An OTP has been sent to your registered email address. Please check your inbox and use the code to complete verification."
	MsgCodeToPhone      = "An OTP has been sent to your registered phone number. Please check your sms and use the code to complete verification."
	MsgCodeToApp        = "Please open your authenticator app to retrieve the verification code and complete the login process."
	MsgPhoneActivation  = "To enable phone-based 2FA, please update your profile with a valid phone number and country code."
	MsgInvalidOTP       = "Invalid OTP."
	MsgOTPSent          = "Secret token sent successfully."
	MsgTwoFASuccess     = "Welcome! Your login was successful."
	MsgValidRecovery    = "Valid recovery code."
	MsgInvalidRecovery  = "Invalid recovery code."

	MsgTemplateSaved = "Email template saved successfully."
	MsgTemplateFound = "Email template get successfully."
)

// ChallengeMessage returns the login response message for the 2FA method
// whose challenge was just issued.
func ChallengeMessage(m TwoFAMethod) string {
	switch m {
	case MethodEmail:
		return MsgCodeToEmail
	case MethodPhone:
		return MsgCodeToPhone
	case MethodApp:
		return MsgCodeToApp
	default:
		return MsgInvalidMethod
	}
}
