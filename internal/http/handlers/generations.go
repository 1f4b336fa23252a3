package handlers

import (
	"net/http"
	"strconv"
	"time"
)

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

// ListGenerations returns recent generation records, newest first.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	records, err := a.History.List(r.Context(), queryLimit(r))
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"generations": records})
}

// ArchiveGenerations downloads the stored images of recent runs as a zip.
func (a *App) ArchiveGenerations(w http.ResponseWriter, r *http.Request) {
	data, count, err := a.History.Archive(r.Context(), queryLimit(r))
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	name := "generations-" + time.Now().UTC().Format("20060102-150405") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("X-Image-Count", strconv.Itoa(count))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
