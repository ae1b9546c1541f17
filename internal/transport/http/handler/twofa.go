package handler

import (
	"encoding/json"
	"net/http"

	"github.com/auth-api-nosql/internal/application/twofa"
	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/pkg/validate"
	"github.com/auth-api-nosql/internal/transport/http/middleware"
)

// TwoFAHandler handles two-factor enrollment and verification endpoints.
type TwoFAHandler struct {
	svc twofa.Service
}

func NewTwoFAHandler(svc twofa.Service) *TwoFAHandler {
	return &TwoFAHandler{svc: svc}
}

func (h *TwoFAHandler) Set(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req twofa.SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	msg, err := h.svc.SetTwoFA(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, msg, nil)
}

func (h *TwoFAHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req twofa.SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.svc.SendOTPToMail(r.Context(), claims.UserID, req.Password); err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgCodeToEmail, nil)
}

func (h *TwoFAHandler) SendSMSCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CountryCode string `json:"countryCode" validate:"required"`
		PhoneNumber string `json:"phoneNumber" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.svc.SendSMSCode(r.Context(), req.CountryCode, req.PhoneNumber); err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgCodeToPhone, nil)
}

func (h *TwoFAHandler) CreateQR(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	res, err := h.svc.CreateQRCode(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgOTPSent, res)
}

func (h *TwoFAHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req twofa.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.svc.VerifyToken(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	if res.NotActive {
		writeAPI(w, http.StatusOK, domain.MsgTwoFANotActive, nil)
		return
	}
	setAuthCookie(w, res.Token)
	writeAPI(w, http.StatusOK, domain.MsgTwoFASuccess, res)
}

func (h *TwoFAHandler) ValidateRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req twofa.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.svc.ValidateRecoveryCode(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	if res.NotActive {
		writeAPI(w, http.StatusOK, domain.MsgTwoFANotActive, nil)
		return
	}
	setAuthCookie(w, res.Token)
	writeAPI(w, http.StatusOK, domain.MsgValidRecovery, res)
}
