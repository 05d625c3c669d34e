package regen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lifeloom/lifeloom/internal/generator"
	"github.com/lifeloom/lifeloom/internal/locks"
	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

// fakeGen returns canned drafts per phase and records the requests it saw.
type fakeGen struct {
	mu       sync.Mutex
	requests []generator.ChapterRequest
	failOn   string // phase that errors, "" for none
}

func (f *fakeGen) GenerateReply(context.Context, []generator.Turn, string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeGen) GenerateSummary(context.Context, generator.SummaryRequest) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeGen) GenerateChapterSnippets(_ context.Context, req generator.ChapterRequest) ([]generator.SnippetDraft, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if req.Phase == f.failOn {
		return nil, errors.New("model overloaded")
	}
	return []generator.SnippetDraft{
		{Title: "Generated " + req.Phase, Content: "From the " + req.PhaseLabel + " chapter.", Theme: "growth"},
	}, nil
}

func (f *fakeGen) requestFor(p phase.Phase) (generator.ChapterRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.Phase == string(p) {
			return r, true
		}
	}
	return generator.ChapterRequest{}, false
}

func newTestCoordinator(t *testing.T, gen generator.Generator) (*Coordinator, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.CreateProject(storage.Project{
		ID: "proj-1", Title: "p", CurrentPhase: "PRESENT",
		AgeBracket: "61_plus", Status: "in_progress",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(store, gen, locks.NewRegistry(), log), store
}

func seedChapter(t *testing.T, store *storage.Store, p phase.Phase, userMessages int) {
	t.Helper()
	for i := 0; i < userMessages; i++ {
		appendMsg(t, store, "user", fmt.Sprintf("memory %d of %s", i, p), p)
		appendMsg(t, store, "assistant", "tell me more", p)
	}
}

var msgSeq int

func appendMsg(t *testing.T, store *storage.Store, role, content string, p phase.Phase) {
	t.Helper()
	msgSeq++
	err := store.AppendMessage(storage.Message{
		ID:        fmt.Sprintf("m-%d", msgSeq),
		ProjectID: "proj-1", Role: role, Content: content,
		PhaseContext: string(p), CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
}

func seedSnippet(t *testing.T, store *storage.Store, id string, p phase.Phase, locked bool) {
	t.Helper()
	if _, err := store.CreateSnippets("proj-1", []storage.Snippet{{
		ID: id, ProjectID: "proj-1", Title: "Snippet " + id, Content: "c",
		Phase: string(p), Theme: "family", CreatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("CreateSnippets: %v", err)
	}
	if locked {
		if _, err := store.ToggleSnippetLock(id); err != nil {
			t.Fatalf("ToggleSnippetLock: %v", err)
		}
	}
}

func TestGenerateReplacesUnlockedKeepsLocked(t *testing.T) {
	gen := &fakeGen{}
	c, store := newTestCoordinator(t, gen)
	seedChapter(t, store, phase.Childhood, 3)
	seedChapter(t, store, phase.Present, 2)
	seedSnippet(t, store, "a", phase.Childhood, true)
	seedSnippet(t, store, "b", phase.Childhood, false)
	seedSnippet(t, store, "c", phase.Present, false)

	created, err := c.Generate(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created snippets, got %d", len(created))
	}

	active, _ := store.ListActiveSnippets("proj-1", "")
	if len(active) != 3 {
		t.Fatalf("expected 3 active, got %d", len(active))
	}
	if active[0].ID != "a" || !active[0].IsLocked {
		t.Errorf("locked snippet displaced: %+v", active[0])
	}
	// Generated snippets follow in chronological chapter order.
	if active[1].Phase != "CHILDHOOD" || active[2].Phase != "PRESENT" {
		t.Errorf("generated order wrong: %s, %s", active[1].Phase, active[2].Phase)
	}

	archived, _ := store.ListArchivedSnippets("proj-1")
	got := map[string]bool{}
	for _, sn := range archived {
		got[sn.ID] = true
	}
	if len(archived) != 2 || !got["b"] || !got["c"] {
		t.Errorf("replaced snippets not archived: %+v", archived)
	}
}

func TestGenerateFailureLeavesDeckUntouched(t *testing.T) {
	gen := &fakeGen{failOn: "PRESENT"}
	c, store := newTestCoordinator(t, gen)
	seedChapter(t, store, phase.Childhood, 2)
	seedChapter(t, store, phase.Present, 2)
	seedSnippet(t, store, "a", phase.Childhood, false)

	if _, err := c.Generate(context.Background(), "proj-1"); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	active, _ := store.ListActiveSnippets("proj-1", "")
	if len(active) != 1 || active[0].ID != "a" || !active[0].IsActive {
		t.Errorf("deck mutated on failure: %+v", active)
	}
	archived, _ := store.ListArchivedSnippets("proj-1")
	if len(archived) != 0 {
		t.Errorf("snippets archived on failure: %+v", archived)
	}
}

func TestGenerateSkipsThinAndNonChapterMaterial(t *testing.T) {
	gen := &fakeGen{}
	c, store := newTestCoordinator(t, gen)
	seedChapter(t, store, phase.Childhood, 2)
	seedChapter(t, store, phase.Adolescence, 1)           // below the minimum
	appendMsg(t, store, "user", "hello", phase.Greeting)  // not a chapter
	appendMsg(t, store, "user", "hi there", phase.Greeting)
	appendMsg(t, store, "user", phase.TransitionMarker(phase.Present), phase.Present)
	appendMsg(t, store, "user", phase.TransitionMarker(phase.Synthesis), phase.Present)

	if _, err := c.Generate(context.Background(), "proj-1"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(gen.requests) != 1 || gen.requests[0].Phase != "CHILDHOOD" {
		t.Errorf("unexpected generation requests: %+v", gen.requests)
	}
}

func TestGenerateNoMaterial(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeGen{})
	if _, err := c.Generate(context.Background(), "proj-1"); !errors.Is(err, ErrNoMaterial) {
		t.Errorf("expected ErrNoMaterial, got %v", err)
	}
}

func TestGeneratePassesLockedTitlesAndCleanTranscript(t *testing.T) {
	gen := &fakeGen{}
	c, store := newTestCoordinator(t, gen)
	seedChapter(t, store, phase.Childhood, 2)
	appendMsg(t, store, "user", phase.TransitionMarker(phase.Adolescence), phase.Childhood)
	seedSnippet(t, store, "a", phase.Childhood, true)
	seedSnippet(t, store, "b", phase.Present, true)

	if _, err := c.Generate(context.Background(), "proj-1"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req, ok := gen.requestFor(phase.Childhood)
	if !ok {
		t.Fatal("no request for CHILDHOOD")
	}
	if len(req.LockedSummaries) != 1 || req.LockedSummaries[0] != "Snippet a" {
		t.Errorf("locked summaries = %v", req.LockedSummaries)
	}
	for _, turn := range req.Transcript {
		if phase.IsTransitionMarker(turn.Content) {
			t.Errorf("marker leaked into transcript: %q", turn.Content)
		}
	}
	if req.TargetCount != snippetsPerChapter {
		t.Errorf("target count = %d", req.TargetCount)
	}
}

func TestGenerateMissingProject(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeGen{})
	if _, err := c.Generate(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
