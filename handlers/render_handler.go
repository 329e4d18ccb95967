package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"collageAPI/internal/asset"
	"collageAPI/internal/history"
	"collageAPI/internal/render"
	"collageAPI/internal/types/share"
	"collageAPI/services"

	log "github.com/sirupsen/logrus"
)

const maxRenderEntries = 500

type RenderHandler struct {
	renderService *services.RenderService
}

func NewRenderHandler(renderService *services.RenderService) *RenderHandler {
	return &RenderHandler{
		renderService: renderService,
	}
}

// RenderPreview draws a posted document and returns it as a PNG. Entries
// that could not be restored are counted in X-Skipped-Entries.
func (h *RenderHandler) RenderPreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req share.SaveHistoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHistoryBody)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entries, err := history.ParseHistoryField(req.History)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(entries) > maxRenderEntries {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d entries can be rendered", maxRenderEntries))
		return
	}
	doc := history.RawDocument{History: entries, Background: req.Background}

	img, report, err := h.renderService.Render(ctx, doc)
	if err != nil {
		if errors.Is(err, asset.ErrUnknownAsset) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Errorf("Failed to render preview: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Skipped-Entries", strconv.Itoa(len(report.Skipped)))
	w.WriteHeader(http.StatusOK)
	if err := render.EncodePNG(w, img); err != nil {
		log.Errorf("Failed to encode preview: %v", err)
	}
}
