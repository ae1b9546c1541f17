package handler

import (
	"encoding/json"
	"net/http"

	"github.com/auth-api-nosql/internal/application/session"
	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/transport/http/middleware"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeAPI(w, http.StatusBadRequest, "refreshToken required", nil)
		return
	}
	bearer, newToken, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpError(w, err)
		return
	}
	setAuthCookie(w, bearer)
	writeAPI(w, http.StatusOK, domain.MsgLoginSuccess, map[string]string{
		"token":        bearer,
		"refreshToken": newToken,
	})
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgUserProfile, sess)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPI(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		httpError(w, err)
		return
	}
	clearAuthCookie(w)
	writeAPI(w, http.StatusOK, domain.MsgLogoutSuccess, nil)
}
