package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifeloom/lifeloom/internal/interview"
	"github.com/lifeloom/lifeloom/internal/phase"
)

type phaseView struct {
	Phase    string `json:"phase"`
	Label    string `json:"label"`
	AgeRange string `json:"age_range,omitempty"`
	Renamed  bool   `json:"renamed"`
	Current  bool   `json:"current"`
}

type projectView struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Status       string      `json:"status"`
	CurrentPhase string      `json:"current_phase"`
	AgeBracket   string      `json:"age_bracket,omitempty"`
	Progress     int         `json:"progress"`
	Phases       []phaseView `json:"phases"`
	CreatedAt    string      `json:"created_at"`
}

func projectViewFrom(st interview.State) projectView {
	order := st.Order
	if order == nil {
		// Pre-age projects still show the full chronology so the client can
		// render the chapter rail.
		order = phase.All
	}
	phases := make([]phaseView, 0, len(order))
	for _, p := range order {
		_, renamed := st.Overlay[p]
		phases = append(phases, phaseView{
			Phase:    string(p),
			Label:    st.ChapterLabel(p),
			AgeRange: p.AgeRange(),
			Renamed:  renamed,
			Current:  p == st.CurrentPhase(),
		})
	}
	return projectView{
		ID:           st.Project.ID,
		Title:        st.Project.Title,
		Status:       st.Project.Status,
		CurrentPhase: st.Project.CurrentPhase,
		AgeBracket:   st.Project.AgeBracket,
		Progress:     st.Progress(),
		Phases:       phases,
		CreatedAt:    st.Project.CreatedAt.Format(time.RFC3339),
	}
}

func handleCreateProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		st, err := deps.Engine.CreateProject(req.Title)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleListProjects(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Store.ListProjects()
		if err != nil {
			domainError(w, err)
			return
		}

		views := make([]projectView, 0, len(projects))
		for _, p := range projects {
			st, err := deps.Engine.GetState(p.ID)
			if err != nil {
				domainError(w, err)
				return
			}
			views = append(views, projectViewFrom(st))
		}
		respondJSON(w, views)
	}
}

func handleGetProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Engine.GetState(chi.URLParam(r, "id"))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleRenameProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		st, err := deps.Engine.RenameProject(r.Context(), chi.URLParam(r, "id"), req.Title)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleDeleteProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteProject(chi.URLParam(r, "id")); err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, map[string]string{"status": "deleted"})
	}
}
