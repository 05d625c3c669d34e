package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

type messageView struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	PhaseContext string `json:"phase_context,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func messageViewFrom(m storage.Message) messageView {
	return messageView{
		ID:           m.ID,
		Role:         m.Role,
		Content:      m.Content,
		PhaseContext: m.PhaseContext,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message        string `json:"message"`
			ReadyConfirmed bool   `json:"ready_confirmed"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		res, err := deps.Engine.Chat(r.Context(), chi.URLParam(r, "id"), req.Message, req.ReadyConfirmed)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, map[string]any{
			"reply":         res.Reply,
			"current_phase": res.State.Project.CurrentPhase,
			"progress":      res.State.Progress(),
		})
	}
}

func handleSelectAge(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AgeBracket string `json:"age_bracket"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		st, err := deps.Engine.SelectAge(r.Context(), chi.URLParam(r, "id"), phase.AgeBracket(req.AgeBracket))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleAdvance(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Engine.AdvanceExplicit(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleJump(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phase string `json:"phase"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		st, err := deps.Engine.JumpTo(r.Context(), chi.URLParam(r, "id"), phase.Phase(req.Phase))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleRenameChapter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Label string `json:"label"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		st, err := deps.Engine.RenameChapter(r.Context(), chi.URLParam(r, "id"), phase.Phase(chi.URLParam(r, "phase")), req.Label)
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleResetChapter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Engine.ResetChapter(r.Context(), chi.URLParam(r, "id"), phase.Phase(chi.URLParam(r, "phase")))
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, projectViewFrom(st))
	}
}

func handleSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phases []string `json:"phases"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		phases := make([]phase.Phase, 0, len(req.Phases))
		for _, p := range req.Phases {
			phases = append(phases, phase.Phase(p))
		}

		sum, err := deps.Engine.Summarize(r.Context(), chi.URLParam(r, "id"), phases)
		if err != nil {
			domainError(w, err)
			return
		}
		resp := map[string]any{"summary": sum.Text}
		if len(sum.Phases) > 0 {
			resp["phases_summarized"] = sum.Phases
		}
		respondJSON(w, resp)
	}
}

func handleListMessages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetProject(id); err != nil {
			domainError(w, err)
			return
		}
		msgs, err := deps.Store.ListMessages(id)
		if err != nil {
			domainError(w, err)
			return
		}

		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, messageViewFrom(m))
		}
		respondJSON(w, views)
	}
}
