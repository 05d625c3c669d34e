// Package ingest imports memoir material from outside the interview: PDF
// documents, web pages, and pasted text. Imported content lands in the
// message log as user context under the project's current phase, where
// regeneration picks it up like any other conversation.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/lifeloom/lifeloom/internal/locks"
	"github.com/lifeloom/lifeloom/internal/storage"
)

var (
	// ErrEmptyDocument is returned when nothing usable could be extracted.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrFetchFailed wraps URL retrieval failures.
	ErrFetchFailed = errors.New("fetching url failed")
)

// maxImportRunes caps how much of a document is stored per import. Large
// memoirs get truncated rather than rejected.
const maxImportRunes = 40000

// maxFetchBytes bounds how much of a remote page is read.
const maxFetchBytes = 4 << 20

type Importer struct {
	store  *storage.Store
	leases *locks.Registry
	client *http.Client
	log    *slog.Logger
}

func NewImporter(store *storage.Store, leases *locks.Registry, log *slog.Logger) *Importer {
	return &Importer{
		store:  store,
		leases: leases,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// ImportText stores pasted memoir text against the project.
func (im *Importer) ImportText(ctx context.Context, projectID, title, text string) (storage.Message, error) {
	return im.saveMaterial(ctx, projectID, title, text)
}

// ImportPDF extracts the plain text of a PDF and stores it.
func (im *Importer) ImportPDF(ctx context.Context, projectID, title string, data []byte) (storage.Message, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return storage.Message{}, fmt.Errorf("reading pdf: %w", err)
	}
	tr, err := r.GetPlainText()
	if err != nil {
		return storage.Message{}, fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(tr); err != nil {
		return storage.Message{}, fmt.Errorf("extracting pdf text: %w", err)
	}
	return im.saveMaterial(ctx, projectID, title, buf.String())
}

// ImportURL fetches a web page, strips its markup, and stores the text.
// Falls back to the page title when the caller gave none.
func (im *Importer) ImportURL(ctx context.Context, projectID, title, url string) (storage.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return storage.Message{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := im.client.Do(req)
	if err != nil {
		return storage.Message{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return storage.Message{}, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return storage.Message{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	text, pageTitle, err := extractHTMLText(bytes.NewReader(body))
	if err != nil {
		return storage.Message{}, fmt.Errorf("parsing page: %w", err)
	}
	if title == "" {
		title = pageTitle
	}
	return im.saveMaterial(ctx, projectID, title, text)
}

func (im *Importer) saveMaterial(ctx context.Context, projectID, title, text string) (storage.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return storage.Message{}, ErrEmptyDocument
	}
	if runes := []rune(text); len(runes) > maxImportRunes {
		text = string(runes[:maxImportRunes])
	}

	project, err := im.store.GetProject(projectID)
	if err != nil {
		return storage.Message{}, err
	}

	release, err := im.leases.Acquire(ctx, projectID)
	if err != nil {
		return storage.Message{}, err
	}
	defer release()

	if title == "" {
		title = "Imported material"
	}
	msg := storage.Message{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Role:         "user",
		Content:      fmt.Sprintf("[Imported: %s]\n\n%s", title, text),
		PhaseContext: project.CurrentPhase,
		CreatedAt:    time.Now().UTC(),
	}
	if err := im.store.AppendMessage(msg); err != nil {
		return storage.Message{}, fmt.Errorf("storing imported material: %w", err)
	}
	im.log.Info("material imported", "project", projectID, "title", title, "chars", len(text))
	return msg, nil
}
