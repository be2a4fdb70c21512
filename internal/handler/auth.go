package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/domain/guard"
	"github.com/agrilink/storefront/internal/domain/session"
)

var errForbidden = errors.New("access denied")

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
}

func newSessionResponse(s session.Session) sessionResponse {
	resp := sessionResponse{Authenticated: s.IsAuthenticated()}
	if resp.Authenticated {
		resp.User = s.User
		if !s.ExpiresAt.IsZero() {
			exp := s.ExpiresAt
			resp.ExpiresAt = &exp
		}
	}
	return resp
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.Sessions.Login(r.Context(), partitionFrom(r.Context()), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.Sessions.Register(r.Context(), partitionFrom(r.Context()), session.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(s))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context(), partitionFrom(r.Context()), session.ReasonUser); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sessions.Refresh(r.Context(), partitionFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	h.getSession(w, r)
}

func (h *Handler) checkGuard(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, r, errors.Wrap(errBadRequest, "path is required"))
		return
	}
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Routes.Check(r.Context(), guard.Request{Path: path, Session: s}))
}
