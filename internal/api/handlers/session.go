package handlers

import (
	"net/http"

	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/services"
)

// SessionHandler is the sign-in stub. Identity on later requests comes from
// the X-User-Email header.
type SessionHandler struct {
	Accounts *services.AccountService
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.Accounts.Login(r.Context(), req.Email)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// Logout ends the client session. The stored profile and route list are kept.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := ProfileFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, services.ErrUnauthenticated.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}
