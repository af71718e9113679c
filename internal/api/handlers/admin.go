package handlers

import (
	"net/http"

	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/services"
)

// AdminHandler serves the fleet master list, held under the admin's route key.
type AdminHandler struct {
	Routes *services.RouteService
}

// Deliveries lists by status priority then name, with ?status= and ?q= filters.
func (h *AdminHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", "all", "pending", "on_way", "delivered":
	default:
		writeError(w, r, http.StatusBadRequest, "status must be one of all, pending, on_way, delivered")
		return
	}

	list, err := h.Routes.PrioritizedView(r.Context(), key, status, r.URL.Query().Get("q"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ListDeliveriesResponse{
		Deliveries: list,
		Pending:    services.PendingCount(list),
	})
}
