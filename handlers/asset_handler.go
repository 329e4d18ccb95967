package handlers

import (
	"net/http"

	"collageAPI/internal/asset"
)

type AssetHandler struct {
	table *asset.Table
}

func NewAssetHandler(table *asset.Table) *AssetHandler {
	return &AssetHandler{table: table}
}

// GetAssets lists the sticker and background keys the editor may use.
func (h *AssetHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"objects":     h.table.Objects,
		"backgrounds": h.table.Backgrounds,
		"default_bg":  h.table.DefaultBackground(),
	})
}
