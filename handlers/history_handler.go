package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"collageAPI/internal/asset"
	"collageAPI/internal/types/share"
	"collageAPI/middleware"
	"collageAPI/services"

	log "github.com/sirupsen/logrus"
)

const maxHistoryBody = 1 << 20

type HistoryHandler struct {
	historyService *services.HistoryService
}

func NewHistoryHandler(historyService *services.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	saved, err := h.historyService.GetHistory(ctx, clerkID)
	if err != nil {
		log.Errorf("Failed to load history for %s: %v", clerkID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	respondWithJSON(w, http.StatusOK, saved)
}

func (h *HistoryHandler) SaveHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req share.SaveHistoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHistoryBody)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.historyService.SaveHistory(ctx, clerkID, &req); err != nil {
		if errors.Is(err, services.ErrInvalidHistory) || errors.Is(err, asset.ErrUnknownAsset) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Errorf("Failed to save history for %s: %v", clerkID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save history")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "History saved"})
}

func (h *HistoryHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.historyService.ResetHistory(ctx, clerkID); err != nil {
		log.Errorf("Failed to reset history for %s: %v", clerkID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to reset history")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "History reset"})
}
