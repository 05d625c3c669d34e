package api

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeloom/lifeloom/internal/storage"
)

func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type    string `json:"type"`
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		}
		if !decodeBody(w, r, maxImportBodySize, &req) {
			return
		}

		id := chi.URLParam(r, "id")
		var msg storage.Message
		var err error
		switch req.Type {
		case "text", "":
			if req.Content == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required for text imports")
				return
			}
			msg, err = deps.Importer.ImportText(r.Context(), id, req.Title, req.Content)
		case "pdf":
			data, decErr := base64.StdEncoding.DecodeString(req.Content)
			if decErr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			msg, err = deps.Importer.ImportPDF(r.Context(), id, req.Title, data)
		case "url":
			if req.URL == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required for url imports")
				return
			}
			msg, err = deps.Importer.ImportURL(r.Context(), id, req.Title, req.URL)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown import type %q", req.Type)
			return
		}
		if err != nil {
			domainError(w, err)
			return
		}
		respondJSON(w, messageViewFrom(msg))
	}
}
