package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/auth-api-nosql/internal/application/auth"
	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/pkg/validate"
	"github.com/auth-api-nosql/internal/transport/http/middleware"
)

// AuthHandler handles registration, login and credential-lifecycle endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusCreated, domain.MsgUserVerifyEmail, u)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAPI(w, http.StatusBadRequest, domain.MsgInvalidToken, nil)
		return
	}
	res, err := h.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		httpError(w, err)
		return
	}
	if res.AlreadyVerified {
		writeAPI(w, http.StatusOK, domain.MsgUserVerified, nil)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgVerifyEmailOK, nil)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.svc.ResendVerification(r.Context(), req.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	if res.AlreadyVerified {
		writeAPI(w, http.StatusOK, domain.MsgUserVerified, nil)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgUserVerifyEmail, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	h.writeLoginResult(w, res, err)
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.svc.LoginWithGoogle(r.Context(), req.IDToken)
	h.writeLoginResult(w, res, err)
}

// writeLoginResult maps a LoginResult onto the envelope. An unverified email
// and a broken 2FA configuration are both 400s that still carry enough data
// for the client to route the user to the right screen.
func (h *AuthHandler) writeLoginResult(w http.ResponseWriter, res *auth.LoginResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailNotVerified):
			writeAPI(w, http.StatusBadRequest, domain.MsgUnverifiedEmail,
				map[string]interface{}{"status": domain.StatusInactive})
		case errors.Is(err, domain.ErrNoTwoFAMethod):
			writeAPI(w, http.StatusBadRequest, domain.MsgInvalidMethod, res)
		default:
			httpError(w, err)
		}
		return
	}
	if res.TwoFAEnabled {
		writeAPI(w, http.StatusOK, domain.ChallengeMessage(res.PreferredTwoFAMethods.MethodType), res)
		return
	}
	if res.Token != nil {
		setAuthCookie(w, *res.Token)
	}
	writeAPI(w, http.StatusOK, domain.MsgLoginSuccess, res)
}

func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.svc.ForgetPassword(r.Context(), req.Email); err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgShareResetLink, nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgPasswordChanged, nil)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req auth.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.UserID, req); err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgPasswordChanged, nil)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	u, err := h.svc.Profile(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgUserProfile, u)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgUpdateProfile, u)
}
