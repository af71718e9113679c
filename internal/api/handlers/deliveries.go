package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"logiflow-service/internal/adapters/handoff"
	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/services"
)

// DeliveryHandler acts on a single record of the caller's route list.
// Unknown ids change nothing and answer 404.
type DeliveryHandler struct {
	Routes   *services.RouteService
	Greeting string
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "delivery not found")
}

func (h *DeliveryHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	provider, err := handoff.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	nav, found, err := h.Routes.InitiateNavigation(r.Context(), key, chi.URLParam(r, "id"), provider)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !found {
		notFound(w, r)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NavigateResponse{Delivery: nav.Record, URL: nav.URL})
}

func (h *DeliveryHandler) Complete(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	rec, found, err := h.Routes.Complete(r.Context(), key, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !found {
		notFound(w, r)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (h *DeliveryHandler) Patch(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	var patch domain.FieldPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Empty() {
		writeError(w, r, http.StatusBadRequest, "no fields to update")
		return
	}

	rec, found, err := h.Routes.EditFields(r.Context(), key, chi.URLParam(r, "id"), patch)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !found {
		notFound(w, r)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (h *DeliveryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	found, err := h.Routes.Remove(r.Context(), key, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !found {
		notFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DeliveryHandler) Contact(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	rec, found, err := h.Routes.Get(r.Context(), key, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !found {
		notFound(w, r)
		return
	}

	greeting := h.Greeting
	if greeting == "" {
		greeting = handoff.DefaultGreeting
	}
	c := handoff.ContactLinks(rec.Phone, greeting)
	writeJSON(w, r, http.StatusOK, dto.ContactResponse{WhatsApp: c.Message, Call: c.Call})
}
