package dto

import (
	"logiflow-service/internal/capture"
	"logiflow-service/internal/domain"
)

type LoginRequest struct {
	Email string `json:"email"`
}

type OpenCaptureRequest struct {
	Camera bool     `json:"camera"`
	Motion bool     `json:"motion"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

type CaptureSessionResponse struct {
	ID      string          `json:"id"`
	Camera  bool            `json:"camera"`
	Motion  bool            `json:"motion"`
	Busy    bool            `json:"busy"`
	Reading capture.Reading `json:"reading"`
}

type MotionRequest struct {
	Samples []capture.MotionSample `json:"samples"`
}

// FrameRequest carries a frame as base64 or a data URI when the client does
// not upload raw image bytes.
type FrameRequest struct {
	Image string `json:"image"`
}

type CaptureResponse struct {
	Preview    domain.DeliveryRecord `json:"preview"`
	Unresolved []string              `json:"unresolved"`
	Guidance   string                `json:"guidance,omitempty"`
}

type ImportRequest struct {
	Text string `json:"text"`
}

type ListDeliveriesResponse struct {
	Deliveries []domain.DeliveryRecord `json:"deliveries"`
	Pending    int                     `json:"pending"`
}

type NavigateResponse struct {
	Delivery domain.DeliveryRecord `json:"delivery"`
	URL      string                `json:"url"`
}

type ContactResponse struct {
	WhatsApp string `json:"whatsapp,omitempty"`
	Call     string `json:"call,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
