package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/client"
)

type notificationsResponse struct {
	Items  []client.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.Notifications.List(s.Context(r.Context()))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list notifications"))
		return
	}
	resp := notificationsResponse{Items: items}
	if resp.Items == nil {
		resp.Items = []client.Notification{}
	}
	for _, n := range items {
		if !n.Read {
			resp.Unread++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Notifications.MarkRead(s.Context(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, errors.Wrap(err, "mark notification read"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
