package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// ErrEmailNotVerified is returned by Login when the credentials are valid but
// the account never completed email verification. Handlers surface the current
// account status alongside it, so it stays distinguishable from bad credentials.
var ErrEmailNotVerified = errors.New("email not verified")

// ErrNoTwoFAMethod marks an account whose 2FA flag is set but whose preferred
// method list matches none of the known channel types. This is a configuration
// defect on the account, not a bad request from the caller.
var ErrNoTwoFAMethod = errors.New("no valid two-factor method")
