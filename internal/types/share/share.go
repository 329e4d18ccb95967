package share

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Share struct {
	ID         uuid.UUID       `json:"id"`
	Owner      string          `json:"-"`
	History    json.RawMessage `json:"history"`
	Background string          `json:"bg"`
	ImageType  string          `json:"image_type"`
	Image      []byte          `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// CreateShareRequest is the body the editor posts when the user shares.
type CreateShareRequest struct {
	ImageData  string          `json:"imageData"`
	History    json.RawMessage `json:"history"`
	Background string          `json:"bg"`
}

type CreateShareResponse struct {
	Message      string `json:"message"`
	Link         string `json:"link,omitempty"`
	Image        string `json:"image,omitempty"`
	QrCodeBase64 string `json:"qr_code_base64,omitempty"`
}

type SavedHistory struct {
	History    json.RawMessage `json:"history"`
	Background string          `json:"bg"`
}

type SaveHistoryRequest struct {
	History    json.RawMessage `json:"history"`
	Background string          `json:"bg"`
}
