// Package regen rebuilds a project's snippet deck from the interview
// transcript. Locked snippets survive every regeneration; unlocked ones are
// archived and replaced in a single transaction, so a generator failure
// leaves the deck exactly as it was.
package regen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lifeloom/lifeloom/internal/generator"
	"github.com/lifeloom/lifeloom/internal/locks"
	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

var (
	// ErrNoMaterial is returned when no chapter has enough conversation to
	// generate from.
	ErrNoMaterial = errors.New("not enough interview material")

	// ErrGenerationFailed wraps any generator error. The snippet set is
	// untouched when this is returned.
	ErrGenerationFailed = errors.New("generation failed")
)

// snippetsPerChapter is the target count handed to the generator for each
// eligible chapter.
const snippetsPerChapter = 3

// minUserMessages is how many user messages a chapter needs before it is
// worth generating from.
const minUserMessages = 2

type Coordinator struct {
	store  *storage.Store
	gen    generator.Generator
	leases *locks.Registry
	log    *slog.Logger
}

func NewCoordinator(store *storage.Store, gen generator.Generator, leases *locks.Registry, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, gen: gen, leases: leases, log: log}
}

// chapterMaterial is the transcript of one chapter, markers excluded.
type chapterMaterial struct {
	phase      phase.Phase
	transcript []generator.Turn
	userCount  int
}

// Generate rebuilds the unlocked portion of a project's deck. The generator
// fan-out runs without the project lease so reads and unrelated work are
// never blocked by model latency; the lease is taken only for the final
// atomic merge. Returns the snippets created.
func (c *Coordinator) Generate(ctx context.Context, projectID string) ([]storage.Snippet, error) {
	if _, err := c.store.GetProject(projectID); err != nil {
		return nil, err
	}

	chapters, err := c.collectMaterial(projectID)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, ErrNoMaterial
	}

	active, err := c.store.ListActiveSnippets(projectID, "")
	if err != nil {
		return nil, err
	}
	lockedTitles := map[phase.Phase][]string{}
	for _, sn := range active {
		if sn.IsLocked {
			p := phase.Phase(sn.Phase)
			lockedTitles[p] = append(lockedTitles[p], sn.Title)
		}
	}

	// One generator call per chapter, concurrently. Results keep chapter
	// order regardless of completion order.
	results := make([][]generator.SnippetDraft, len(chapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range chapters {
		g.Go(func() error {
			drafts, err := c.gen.GenerateChapterSnippets(gctx, generator.ChapterRequest{
				Phase:           string(ch.phase),
				PhaseLabel:      ch.phase.Label(),
				Transcript:      ch.transcript,
				LockedSummaries: lockedTitles[ch.phase],
				TargetCount:     snippetsPerChapter,
			})
			if err != nil {
				return fmt.Errorf("chapter %s: %w", ch.phase, err)
			}
			results[i] = drafts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Warn("regeneration aborted, deck unchanged", "project", projectID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	now := time.Now().UTC()
	var drafts []storage.Snippet
	for i, ch := range chapters {
		for _, d := range results[i] {
			drafts = append(drafts, storage.Snippet{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				Title:     d.Title,
				Content:   d.Content,
				Phase:     string(ch.phase),
				Theme:     d.Theme,
				CreatedAt: now,
			})
		}
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: generator returned nothing", ErrGenerationFailed)
	}

	release, err := c.leases.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	created, err := c.store.ReplaceUnlockedSnippets(projectID, drafts)
	if err != nil {
		return nil, fmt.Errorf("merging generated snippets: %w", err)
	}
	c.log.Info("deck regenerated", "project", projectID, "chapters", len(chapters), "created", len(created))
	return created, nil
}

// collectMaterial groups the message log by chapter phase, drops transition
// markers, and keeps chapters with enough user contribution. Chapters come
// back in chronological phase order.
func (c *Coordinator) collectMaterial(projectID string) ([]chapterMaterial, error) {
	msgs, err := c.store.ListMessages(projectID)
	if err != nil {
		return nil, err
	}

	byPhase := map[phase.Phase]*chapterMaterial{}
	for _, m := range msgs {
		p := phase.Phase(m.PhaseContext)
		if !p.IsChapter() || phase.IsTransitionMarker(m.Content) {
			continue
		}
		ch, ok := byPhase[p]
		if !ok {
			ch = &chapterMaterial{phase: p}
			byPhase[p] = ch
		}
		ch.transcript = append(ch.transcript, generator.Turn{Role: m.Role, Content: m.Content})
		if m.Role == "user" {
			ch.userCount++
		}
	}

	var chapters []chapterMaterial
	for _, p := range phase.Chapters() {
		if ch, ok := byPhase[p]; ok && ch.userCount >= minUserMessages {
			chapters = append(chapters, *ch)
		}
	}
	return chapters, nil
}
