package handlers

import (
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/capture"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/services"
)

// maxFrameBytes bounds an uploaded frame (a 1920x1080 JPEG is well under this).
const maxFrameBytes = 12 << 20

// CaptureHandler exposes capture sessions: steadiness feedback while aiming,
// then frame upload for extraction.
type CaptureHandler struct {
	Captures *services.CaptureManager
}

func sessionResponse(s *services.CaptureSession) dto.CaptureSessionResponse {
	perms := s.Permissions()
	return dto.CaptureSessionResponse{
		ID:      s.ID,
		Camera:  perms.Camera,
		Motion:  perms.Motion,
		Busy:    s.Busy(),
		Reading: s.Reading(),
	}
}

func (h *CaptureHandler) Open(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}

	var req dto.OpenCaptureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var loc *domain.Geolocation
	if req.Lat != nil && req.Lng != nil {
		loc = &domain.Geolocation{Lat: *req.Lat, Lng: *req.Lng}
	}

	s, err := h.Captures.Open(key, services.Permissions{Camera: req.Camera, Motion: req.Motion}, loc)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sessionResponse(s))
}

func (h *CaptureHandler) session(w http.ResponseWriter, r *http.Request) (*services.CaptureSession, bool) {
	key, ok := routeKey(w, r)
	if !ok {
		return nil, false
	}
	s, err := h.Captures.Get(key, chi.URLParam(r, "sid"))
	if err != nil {
		WriteServiceError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *CaptureHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse(s))
}

func (h *CaptureHandler) Motion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req dto.MotionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reading, err := s.Observe(req.Samples...)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reading)
}

// Frame accepts a JPEG/PNG body, or JSON {"image": "<base64 or data URI>"}.
func (h *CaptureHandler) Frame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBytes)
	frame, err := readFrame(r)
	if errors.Is(err, capture.ErrFrameTooLarge) {
		WriteServiceError(w, r, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.Capture(r.Context(), frame)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.CaptureResponse{
		Preview:    res.Preview,
		Unresolved: res.Unresolved,
		Guidance:   res.Preview.GuidanceNote,
	})
}

func readFrame(r *http.Request) (image.Image, error) {
	defer r.Body.Close()

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var req dto.FrameRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Image) == "" {
			return nil, capture.ErrEmptyFrame
		}
		return capture.DecodeBase64Frame(req.Image)
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return capture.DecodeFrameBytes(raw)
}

func (h *CaptureHandler) Close(w http.ResponseWriter, r *http.Request) {
	key, ok := routeKey(w, r)
	if !ok {
		return
	}
	if err := h.Captures.Close(key, chi.URLParam(r, "sid")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
