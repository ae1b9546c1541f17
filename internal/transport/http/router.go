package http

import (
	"net/http"

	"github.com/auth-api-nosql/internal/application/auth"
	"github.com/auth-api-nosql/internal/application/session"
	"github.com/auth-api-nosql/internal/application/twofa"
	"github.com/auth-api-nosql/internal/config"
	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/infrastructure/dynamo"
	googleauth "github.com/auth-api-nosql/internal/infrastructure/google"
	jwtinfra "github.com/auth-api-nosql/internal/infrastructure/jwt"
	"github.com/auth-api-nosql/internal/infrastructure/smtp"
	snsinfra "github.com/auth-api-nosql/internal/infrastructure/sns"
	"github.com/auth-api-nosql/internal/transport/http/handler"
	appmiddleware "github.com/auth-api-nosql/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      *dynamo.UserRepo
	SessionRepo   *dynamo.SessionRepo
	TemplateRepo  *dynamo.EmailTemplateRepo
	Mailer        smtp.Mailer
	PhoneVerifier *snsinfra.PhoneVerifier
	JWTProvider   *jwtinfra.Provider
	GoogleAuth    *googleauth.Verifier
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	sessionSvc := session.NewService(deps.SessionRepo, deps.UserRepo, deps.JWTProvider, cfg.RefreshTokenExpiry)
	twofaSvc := twofa.NewService(deps.UserRepo, deps.Mailer, deps.PhoneVerifier, sessionSvc,
		cfg.AppName, cfg.OTPLength, cfg.OTPValidFor, cfg.RecoveryCodes)
	authSvc := auth.NewService(deps.UserRepo, deps.Mailer, deps.JWTProvider, deps.GoogleAuth,
		sessionSvc, twofaSvc, cfg.AppBaseURL, cfg.VerifyEmailExpiry, cfg.ResetTokenExpire)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	twofaH := handler.NewTwoFAHandler(twofaSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	templateH := handler.NewTemplateHandler(deps.TemplateRepo)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.Get("/auth/verify-email", authH.VerifyEmail)
		r.With(sensitiveRL.Limit).Post("/auth/resend-verification", authH.ResendVerification)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/google", authH.GoogleLogin)
		r.With(sensitiveRL.Limit).Post("/auth/forget-password", authH.ForgetPassword)
		r.With(sensitiveRL.Limit).Post("/auth/reset-password", authH.ResetPassword)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/twofa/verify-token", twofaH.VerifyToken)
		r.With(sensitiveRL.Limit).Post("/twofa/validate-recovery-code", twofaH.ValidateRecoveryCode)
		r.With(sensitiveRL.Limit).Post("/twofa/send-sms-code", twofaH.SendSMSCode)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/auth/profile", authH.Profile)
			r.Put("/auth/profile", authH.UpdateProfile)
			r.Post("/auth/change-password", authH.ChangePassword)

			r.Post("/twofa/set", twofaH.Set)
			r.Post("/twofa/send-otp", twofaH.SendOTP)
			r.Post("/twofa/create-qr", twofaH.CreateQR)

			// ── Admin routes ─────────────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Put("/admin/templates", templateH.Upsert)
				r.Get("/admin/templates/{slug}", templateH.GetBySlug)
			})
		})
	})

	return r
}
