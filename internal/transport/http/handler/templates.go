package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

type templateStore interface {
	Put(ctx context.Context, t *domain.EmailTemplate) error
	GetBySlug(ctx context.Context, slug string) (*domain.EmailTemplate, error)
}

// TemplateHandler manages the stored email templates. Admin only: a bad
// template silently breaks every mail the system sends.
type TemplateHandler struct {
	store templateStore
}

func NewTemplateHandler(store templateStore) *TemplateHandler {
	return &TemplateHandler{store: store}
}

func (h *TemplateHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug     string `json:"slug" validate:"required"`
		Subject  string `json:"subject" validate:"required"`
		HTML     string `json:"html" validate:"required"`
		IsActive bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	tpl := &domain.EmailTemplate{
		Slug:     req.Slug,
		Subject:  req.Subject,
		HTML:     req.HTML,
		IsActive: req.IsActive,
	}
	if err := h.store.Put(r.Context(), tpl); err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgTemplateSaved, tpl)
}

func (h *TemplateHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.store.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeAPI(w, http.StatusOK, domain.MsgTemplateFound, tpl)
}
