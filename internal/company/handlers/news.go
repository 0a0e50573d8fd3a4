package handlers

import (
	"context"
	"net/http"

	"github.com/gartstein/founderhub/internal/company/auth"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
)

type newsOp func(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error

func (h *CompanyHandler) addNews(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, err := auth.RequireRole(r.Context(), models.UserRoleStartup, models.UserRoleAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var n models.News
	if err := decodeJSON(w, r, &n); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.service.AddNews(r.Context(), user, id, &n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *CompanyHandler) listNews(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.writeError(w, r, e.ErrUnauthenticated)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.service.ListNews(r.Context(), user, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *CompanyHandler) deleteNews(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.newsItem(w, r, params, h.service.DeleteNews)
}

func (h *CompanyHandler) removeNewsThumbnail(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.newsItem(w, r, params, h.service.RemoveNewsThumbnail)
}

// newsItem runs an owner operation on one news item and answers 204.
func (h *CompanyHandler) newsItem(w http.ResponseWriter, r *http.Request, params map[string]string, op newsOp) {
	user, err := auth.RequireRole(r.Context(), models.UserRoleStartup, models.UserRoleAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	newsID, err := pathID(params, "newsId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := op(r.Context(), user, id, newsID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
