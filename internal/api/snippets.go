package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

type snippetView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Phase        string `json:"phase"`
	Theme        string `json:"theme"`
	DisplayOrder int    `json:"display_order"`
	IsLocked     bool   `json:"is_locked"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
}

func snippetViewFrom(sn storage.Snippet) snippetView {
	return snippetView{
		ID:           sn.ID,
		Title:        sn.Title,
		Content:      sn.Content,
		Phase:        sn.Phase,
		Theme:        sn.Theme,
		DisplayOrder: sn.DisplayOrder,
		IsLocked:     sn.IsLocked,
		IsActive:     sn.IsActive,
		CreatedAt:    sn.CreatedAt.Format(time.RFC3339),
	}
}

func snippetViewsFrom(sns []storage.Snippet) []snippetView {
	views := make([]snippetView, 0, len(sns))
	for _, sn := range sns {
		views = append(views, snippetViewFrom(sn))
	}
	return views
}

func handleListSnippets(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetProject(id); err != nil {
			domainError(w, err)
			return
		}

		sns, err := deps.Snippets.ListActive(id, phase.Phase(r.URL.Query().Get("phase")))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewsFrom(sns))
	}
}

func handleListArchived(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetProject(id); err != nil {
			domainError(w, err)
			return
		}

		sns, err := deps.Snippets.ListArchived(id)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewsFrom(sns))
	}
}

func handleAddSnippet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			Phase   string `json:"phase"`
			Theme   string `json:"theme"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if req.Title == "" || req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title and content are required")
			return
		}

		sn, err := deps.Snippets.Add(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content, phase.Phase(req.Phase), req.Theme)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewFrom(sn))
	}
}

func handleGenerate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		created, err := deps.Regen.Generate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewsFrom(created))
	}
}

func handleEditSnippet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title   *string `json:"title"`
			Content *string `json:"content"`
			Theme   *string `json:"theme"`
			Phase   *string `json:"phase"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		sn, err := deps.Snippets.Edit(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"),
			req.Title, req.Content, req.Theme, req.Phase)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewFrom(sn))
	}
}

func handleToggleLock(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sn, err := deps.Snippets.ToggleLock(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewFrom(sn))
	}
}

func handleArchiveSnippet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Snippets.Archive(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid")); err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, map[string]string{"status": "archived"})
	}
}

func handleRestoreSnippet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sn, err := deps.Snippets.Restore(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewFrom(sn))
	}
}

func handleDeleteSnippet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Snippets.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid")); err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleReorder(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		active, err := deps.Snippets.Reorder(r.Context(), chi.URLParam(r, "id"), req.IDs)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, snippetViewsFrom(active))
	}
}
