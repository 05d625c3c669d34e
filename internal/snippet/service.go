// Package snippet exposes the curation operations over the stored snippet
// deck: manual adds, edits, lock toggles, archive/restore, permanent
// deletes, and full reorders. Mutations run under the project lease so they
// cannot interleave with a regeneration merge.
package snippet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeloom/lifeloom/internal/locks"
	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

// ErrInvalidPhase is returned when a snippet is created on, or moved to, a
// phase that is not an interview chapter.
var ErrInvalidPhase = errors.New("not a chapter phase")

const defaultTheme = "growth"

type Service struct {
	store  *storage.Store
	leases *locks.Registry
	log    *slog.Logger
}

func NewService(store *storage.Store, leases *locks.Registry, log *slog.Logger) *Service {
	return &Service{store: store, leases: leases, log: log}
}

// Add creates one snippet at the end of the project's active ordering.
func (s *Service) Add(ctx context.Context, projectID, title, content string, p phase.Phase, theme string) (storage.Snippet, error) {
	if !p.IsChapter() {
		return storage.Snippet{}, fmt.Errorf("%w: %q", ErrInvalidPhase, p)
	}
	if _, err := s.store.GetProject(projectID); err != nil {
		return storage.Snippet{}, err
	}
	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = defaultTheme
	}

	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return storage.Snippet{}, err
	}
	defer release()

	created, err := s.store.CreateSnippets(projectID, []storage.Snippet{{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		Content:   content,
		Phase:     string(p),
		Theme:     theme,
		CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		return storage.Snippet{}, err
	}
	return created[0], nil
}

// Edit updates title, content, theme, or phase of a snippet. Nil fields stay
// as they are; lock state, archive state, and ordering are untouched.
func (s *Service) Edit(ctx context.Context, projectID, snippetID string, title, content, theme, ph *string) (storage.Snippet, error) {
	if ph != nil && !phase.Phase(*ph).IsChapter() {
		return storage.Snippet{}, fmt.Errorf("%w: %q", ErrInvalidPhase, *ph)
	}

	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return storage.Snippet{}, err
	}
	defer release()

	if err := s.requireOwned(projectID, snippetID); err != nil {
		return storage.Snippet{}, err
	}
	if err := s.store.UpdateSnippetFields(snippetID, title, content, theme, ph); err != nil {
		return storage.Snippet{}, err
	}
	return s.store.GetSnippet(snippetID)
}

// ToggleLock flips the lock flag. Works on archived snippets too; the lock
// simply has no effect until restore.
func (s *Service) ToggleLock(ctx context.Context, projectID, snippetID string) (storage.Snippet, error) {
	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return storage.Snippet{}, err
	}
	defer release()

	if err := s.requireOwned(projectID, snippetID); err != nil {
		return storage.Snippet{}, err
	}
	return s.store.ToggleSnippetLock(snippetID)
}

// Archive soft-deletes a snippet.
func (s *Service) Archive(ctx context.Context, projectID, snippetID string) error {
	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.requireOwned(projectID, snippetID); err != nil {
		return err
	}
	return s.store.ArchiveSnippet(snippetID)
}

// Restore brings an archived snippet back at the end of the active
// ordering.
func (s *Service) Restore(ctx context.Context, projectID, snippetID string) (storage.Snippet, error) {
	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return storage.Snippet{}, err
	}
	defer release()

	if err := s.requireOwned(projectID, snippetID); err != nil {
		return storage.Snippet{}, err
	}
	return s.store.RestoreSnippet(snippetID)
}

// Delete removes a snippet permanently, locked or not, archived or not.
func (s *Service) Delete(ctx context.Context, projectID, snippetID string) error {
	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.requireOwned(projectID, snippetID); err != nil {
		return err
	}
	s.log.Info("snippet permanently deleted", "project", projectID, "snippet", snippetID)
	return s.store.DeleteSnippet(snippetID)
}

// Reorder reassigns the active ordering to match ids exactly.
func (s *Service) Reorder(ctx context.Context, projectID string, ids []string) ([]storage.Snippet, error) {
	release, err := s.leases.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.store.ReorderSnippets(projectID, ids); err != nil {
		return nil, err
	}
	return s.store.ListActiveSnippets(projectID, "")
}

// ListActive returns active snippets in display order, optionally filtered
// by phase. Reads take no lease.
func (s *Service) ListActive(projectID string, p phase.Phase) ([]storage.Snippet, error) {
	if p != "" && !p.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, p)
	}
	return s.store.ListActiveSnippets(projectID, string(p))
}

// ListArchived returns archived snippets, newest first.
func (s *Service) ListArchived(projectID string) ([]storage.Snippet, error) {
	return s.store.ListArchivedSnippets(projectID)
}

// requireOwned rejects snippet ids that exist but belong to a different
// project, so one project's URL space cannot reach into another's deck.
func (s *Service) requireOwned(projectID, snippetID string) error {
	sn, err := s.store.GetSnippet(snippetID)
	if err != nil {
		return err
	}
	if sn.ProjectID != projectID {
		return storage.ErrNotFound
	}
	return nil
}
