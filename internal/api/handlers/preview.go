package handlers

import (
	"net/http"

	"logiflow-service/internal/domain"
	"logiflow-service/internal/services"
)

// PreviewHandler manages the record staged by the last capture.
type PreviewHandler struct {
	Routes *services.RouteService
}

func (h *PreviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}
	rec, ok := h.Routes.Preview(key)
	if !ok {
		WriteServiceError(w, r, services.ErrNoPreview)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (h *PreviewHandler) Patch(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	var patch domain.FieldPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Routes.EditPreview(key, patch)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (h *PreviewHandler) Commit(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	rec, err := h.Routes.CommitPreview(r.Context(), key)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

func (h *PreviewHandler) Discard(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}
	h.Routes.DiscardPreview(key)
	w.WriteHeader(http.StatusNoContent)
}
