package handlers

import (
	"io"
	"mime"
	"net/http"

	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/services"
)

const maxImportBytes = 1 << 20

// RouteHandler serves the driver's route list.
type RouteHandler struct {
	Routes *services.RouteService
}

func listResponse(list []domain.DeliveryRecord) dto.ListDeliveriesResponse {
	return dto.ListDeliveriesResponse{Deliveries: list, Pending: services.PendingCount(list)}
}

func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	list, err := h.Routes.List(r.Context(), key)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listResponse(list))
}

// Import accepts the pasted list as text/plain or JSON {"text": "..."}.
func (h *RouteHandler) Import(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var text string
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var req dto.ImportRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		text = req.Text
	} else {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "could not read body")
			return
		}
		text = string(raw)
	}

	added, err := h.Routes.Import(r.Context(), key, text)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"imported": added})
}

// Activate starts the route: delivered records move to the back.
func (h *RouteHandler) Activate(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	list, err := h.Routes.ActivateRoute(r.Context(), key)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listResponse(list))
}
