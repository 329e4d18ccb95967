package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"collageAPI/internal/asset"
	"collageAPI/internal/storage"
	"collageAPI/internal/types/share"
	"collageAPI/middleware"
	"collageAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// maxShareBody leaves room for base64 overhead on top of the image cap.
const maxShareBody = 8 << 20

type ShareHandler struct {
	shareService *services.ShareService
}

func NewShareHandler(shareService *services.ShareService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
	}
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req share.CreateShareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxShareBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	owner, _ := middleware.GetClerkID(ctx)
	resp, err := h.shareService.CreateShare(ctx, owner, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrImageTooLarge):
			respondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, services.ErrInvalidImage),
			errors.Is(err, services.ErrInvalidHistory),
			errors.Is(err, asset.ErrUnknownAsset):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			log.Errorf("Failed to create share: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to create share")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *ShareHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sh, ok := h.lookup(ctx, w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, sh)
}

func (h *ShareHandler) GetShareImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sh, ok := h.lookup(ctx, w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", sh.ImageType)
	w.Header().Set("Content-Length", strconv.Itoa(len(sh.Image)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(sh.Image)
}

var sharePageTemplate = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Sticker Collage</title>
	<meta name="twitter:card" content="summary_large_image">
	<meta name="twitter:title" content="Sticker Collage">
	<meta name="twitter:image" content="{{.Image}}">
	<meta property="og:title" content="Sticker Collage">
	<meta property="og:image" content="{{.Image}}">
	<meta property="og:url" content="{{.Page}}">
	<meta http-equiv="refresh" content="0; url={{.Link}}">
</head>
<body>
	<p><a href="{{.Link}}">Open the collage</a></p>
	<img src="{{.Image}}" alt="collage" width="600">
</body>
</html>
`))

// SharePage serves a small page carrying card metadata for link previews
// that forwards browsers to the editor.
func (h *ShareHandler) SharePage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sh, ok := h.lookup(ctx, w, r)
	if !ok {
		return
	}

	data := struct {
		Link  string
		Image string
		Page  string
	}{
		Link:  h.shareService.Link(sh.ID),
		Image: h.shareService.ImageURL(sh.ID),
		Page:  h.shareService.PageURL(sh.ID),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := sharePageTemplate.Execute(w, data); err != nil {
		log.Errorf("Failed to render share page: %v", err)
	}
}

func (h *ShareHandler) lookup(ctx context.Context, w http.ResponseWriter, r *http.Request) (*share.Share, bool) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid share id")
		return nil, false
	}

	sh, err := h.shareService.GetShare(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Share not found")
			return nil, false
		}
		log.Errorf("Failed to load share %s: %v", id, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load share")
		return nil, false
	}
	return sh, true
}
