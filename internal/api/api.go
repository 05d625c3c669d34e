// Package api exposes the interview and snippet operations over HTTP and
// MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeloom/lifeloom/internal/ingest"
	"github.com/lifeloom/lifeloom/internal/interview"
	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/regen"
	"github.com/lifeloom/lifeloom/internal/snippet"
	"github.com/lifeloom/lifeloom/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxImportBodySize = 10 << 20 // 10MB, PDFs arrive base64-encoded

type AppDeps struct {
	Store    *storage.Store
	Engine   *interview.Engine
	Snippets *snippet.Service
	Regen    *regen.Coordinator
	Importer *ingest.Importer
	Token    string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/projects", handleCreateProject(deps))
		r.Get("/projects", handleListProjects(deps))
		r.Get("/projects/{id}", handleGetProject(deps))
		r.Patch("/projects/{id}", handleRenameProject(deps))
		r.Delete("/projects/{id}", handleDeleteProject(deps))

		r.Post("/projects/{id}/chat", handleChat(deps))
		r.Post("/projects/{id}/age", handleSelectAge(deps))
		r.Post("/projects/{id}/advance", handleAdvance(deps))
		r.Post("/projects/{id}/jump", handleJump(deps))
		r.Put("/projects/{id}/chapters/{phase}", handleRenameChapter(deps))
		r.Delete("/projects/{id}/chapters/{phase}", handleResetChapter(deps))
		r.Get("/projects/{id}/messages", handleListMessages(deps))
		r.Post("/projects/{id}/summary", handleSummary(deps))
		r.Post("/projects/{id}/import", handleImport(deps))

		r.Get("/projects/{id}/snippets", handleListSnippets(deps))
		r.Get("/projects/{id}/snippets/archived", handleListArchived(deps))
		r.Post("/projects/{id}/snippets", handleAddSnippet(deps))
		r.Post("/projects/{id}/snippets/generate", handleGenerate(deps))
		r.Put("/projects/{id}/snippets/order", handleReorder(deps))
		r.Patch("/projects/{id}/snippets/{sid}", handleEditSnippet(deps))
		r.Post("/projects/{id}/snippets/{sid}/lock", handleToggleLock(deps))
		r.Post("/projects/{id}/snippets/{sid}/archive", handleArchiveSnippet(deps))
		r.Post("/projects/{id}/snippets/{sid}/restore", handleRestoreSnippet(deps))
		r.Delete("/projects/{id}/snippets/{sid}", handleDeleteSnippet(deps))
	})

	return r
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// domainError maps domain sentinels onto the HTTP error taxonomy: rejected
// transitions and consistency violations are 409, stale references 404, bad
// values 400, generator trouble 502.
func domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, interview.ErrPhaseAlreadySelected),
		errors.Is(err, interview.ErrNoSuccessorPhase),
		errors.Is(err, interview.ErrPhaseNotInOrder),
		errors.Is(err, interview.ErrNonRenamablePhase),
		errors.Is(err, interview.ErrAgeNotSelected):
		httpError(w, http.StatusConflict, "invalid_transition", "%v", err)
	case errors.Is(err, storage.ErrAlreadyArchived),
		errors.Is(err, storage.ErrNotArchived),
		errors.Is(err, storage.ErrReorderSetMismatch),
		errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, regen.ErrNoMaterial),
		errors.Is(err, interview.ErrNoSummaryMaterial):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case errors.Is(err, phase.ErrInvalidAgeBracket),
		errors.Is(err, snippet.ErrInvalidPhase),
		errors.Is(err, ingest.ErrEmptyDocument):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, regen.ErrGenerationFailed),
		errors.Is(err, interview.ErrReplyFailed),
		errors.Is(err, interview.ErrSummaryFailed),
		errors.Is(err, ingest.ErrFetchFailed):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}
