package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "history": a.HistoryStore}
	if a.Comfy != nil {
		body["comfyui"] = a.Comfy.State()
	}
	if a.Catalog != nil {
		body["post_types"] = len(a.Catalog.Names())
	}
	a.json(w, http.StatusOK, body)
}
