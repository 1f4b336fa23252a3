package handlers

import (
	"net/http"

	"studio/internal/domain"
)

const invalidPostType = "Invalid post_type."

func (a *App) PostTypes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, domain.PostTypesResponse{PostTypes: a.Catalog.Names()})
}

// PromptForm describes the fields a post type asks for.
func (a *App) PromptForm(w http.ResponseWriter, r *http.Request) {
	schema, err := a.Catalog.Schema(r.URL.Query().Get("post_type"))
	if err != nil {
		a.fail(w, http.StatusBadRequest, invalidPostType)
		return
	}
	a.json(w, http.StatusOK, schema)
}
