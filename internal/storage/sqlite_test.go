package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProject(t *testing.T, s *Store, id string) Project {
	t.Helper()
	p := Project{
		ID:           id,
		Title:        "My Life Story",
		CurrentPhase: "GREETING",
		Status:       "draft",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func testSnippet(id, projectID, phase string) Snippet {
	return Snippet{
		ID:        id,
		ProjectID: projectID,
		Title:     "Title " + id,
		Content:   "Content " + id,
		Phase:     phase,
		Theme:     "growth",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
	if len(v1) == 0 {
		t.Fatal("expected at least one applied migration")
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := testProject(t, s, "proj-1")

	got, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Title != want.Title || got.CurrentPhase != "GREETING" || got.Version != 0 {
		t.Errorf("unexpected project: %+v", got)
	}

	if _, err := s.GetProject("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProjectStateVersionCheck(t *testing.T) {
	s := openTestStore(t)
	p := testProject(t, s, "proj-1")

	p.CurrentPhase = "FAMILY_HISTORY"
	p.AgeBracket = "61_plus"
	p.Status = "in_progress"
	if err := s.UpdateProjectState(p); err != nil {
		t.Fatalf("UpdateProjectState: %v", err)
	}

	got, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Version != 1 || got.CurrentPhase != "FAMILY_HISTORY" || got.AgeBracket != "61_plus" {
		t.Errorf("unexpected project after update: %+v", got)
	}

	// Stale version loses.
	p.CurrentPhase = "CHILDHOOD"
	if err := s.UpdateProjectState(p); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	p.ID = "missing"
	if err := s.UpdateProjectState(p); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyPhaseTransitionAtomic(t *testing.T) {
	s := openTestStore(t)
	p := testProject(t, s, "proj-1")

	marker := Message{
		ID: "mk-1", ProjectID: "proj-1", Role: "user",
		Content: "[Moving to next phase: CHILDHOOD]", PhaseContext: "CHILDHOOD",
		CreatedAt: time.Now().UTC(),
	}
	p.CurrentPhase = "CHILDHOOD"
	if err := s.ApplyPhaseTransition(p, marker); err != nil {
		t.Fatalf("ApplyPhaseTransition: %v", err)
	}
	got, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.CurrentPhase != "CHILDHOOD" || got.Version != 1 {
		t.Errorf("unexpected project after transition: %+v", got)
	}
	msgs, _ := s.ListMessages("proj-1")
	if len(msgs) != 1 || msgs[0].ID != "mk-1" {
		t.Fatalf("expected exactly the marker in the log, got %+v", msgs)
	}

	// A stale version must write nothing, the marker included.
	p.CurrentPhase = "ADOLESCENCE"
	stale := Message{
		ID: "mk-2", ProjectID: "proj-1", Role: "user",
		Content: "[Moving to next phase: ADOLESCENCE]", PhaseContext: "ADOLESCENCE",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.ApplyPhaseTransition(p, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	msgs, _ = s.ListMessages("proj-1")
	if len(msgs) != 1 {
		t.Errorf("stranded marker after rejected transition: %d messages", len(msgs))
	}
	after, _ := s.GetProject("proj-1")
	if after.CurrentPhase != "CHILDHOOD" {
		t.Errorf("phase changed despite conflict: %s", after.CurrentPhase)
	}

	p.ID = "missing"
	if err := s.ApplyPhaseTransition(p, stale); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")

	msg := Message{
		ID: "msg-1", ProjectID: "proj-1", Role: "user",
		Content: "hello", PhaseContext: "GREETING",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.AppendMessage(msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.CreateSnippets("proj-1", []Snippet{testSnippet("sn-1", "proj-1", "CHILDHOOD")}); err != nil {
		t.Fatalf("CreateSnippets: %v", err)
	}

	if err := s.DeleteProject("proj-1"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	msgs, err := s.ListMessages("proj-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages not cascaded: %d left", len(msgs))
	}
	if _, err := s.GetSnippet("sn-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("snippets not cascaded: %v", err)
	}
}

func TestMessageOrdering(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		m := Message{
			ID:        fmt.Sprintf("msg-%d", i),
			ProjectID: "proj-1",
			Role:      "user",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: now, // identical timestamps; seq must still order them
		}
		if err := s.AppendMessage(m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := s.ListMessages("proj-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.ID != fmt.Sprintf("msg-%d", i) {
			t.Errorf("message %d out of order: %s", i, m.ID)
		}
	}

	recent, err := s.ListRecentMessages("proj-1", 2)
	if err != nil {
		t.Fatalf("ListRecentMessages: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "msg-3" || recent[1].ID != "msg-4" {
		t.Errorf("unexpected recent window: %+v", recent)
	}
}

func TestCreateSnippetsAssignsDenseOrder(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")

	created, err := s.CreateSnippets("proj-1", []Snippet{
		testSnippet("a", "proj-1", "CHILDHOOD"),
		testSnippet("b", "proj-1", "CHILDHOOD"),
		testSnippet("c", "proj-1", "PRESENT"),
	})
	if err != nil {
		t.Fatalf("CreateSnippets: %v", err)
	}
	for i, sn := range created {
		if sn.DisplayOrder != i {
			t.Errorf("snippet %s: display_order = %d, want %d", sn.ID, sn.DisplayOrder, i)
		}
	}

	// A later batch continues after the existing maximum.
	more, err := s.CreateSnippets("proj-1", []Snippet{testSnippet("d", "proj-1", "PRESENT")})
	if err != nil {
		t.Fatalf("CreateSnippets: %v", err)
	}
	if more[0].DisplayOrder != 3 {
		t.Errorf("second batch display_order = %d, want 3", more[0].DisplayOrder)
	}
}

func TestArchiveRestoreSnippet(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")
	s.CreateSnippets("proj-1", []Snippet{
		testSnippet("a", "proj-1", "CHILDHOOD"),
		testSnippet("b", "proj-1", "CHILDHOOD"),
	})

	if err := s.ArchiveSnippet("a"); err != nil {
		t.Fatalf("ArchiveSnippet: %v", err)
	}
	if err := s.ArchiveSnippet("a"); !errors.Is(err, ErrAlreadyArchived) {
		t.Errorf("expected ErrAlreadyArchived, got %v", err)
	}
	if err := s.ArchiveSnippet("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// b keeps its display_order; no renumbering on archive.
	b, _ := s.GetSnippet("b")
	if b.DisplayOrder != 1 {
		t.Errorf("b display_order changed to %d on archive of a", b.DisplayOrder)
	}

	restored, err := s.RestoreSnippet("a")
	if err != nil {
		t.Fatalf("RestoreSnippet: %v", err)
	}
	if !restored.IsActive {
		t.Error("restored snippet not active")
	}
	if restored.DisplayOrder != 2 {
		t.Errorf("restored display_order = %d, want 2 (end of ordering)", restored.DisplayOrder)
	}
	if _, err := s.RestoreSnippet("a"); !errors.Is(err, ErrNotArchived) {
		t.Errorf("expected ErrNotArchived, got %v", err)
	}
}

func TestToggleSnippetLock(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")
	s.CreateSnippets("proj-1", []Snippet{testSnippet("a", "proj-1", "CHILDHOOD")})

	sn, err := s.ToggleSnippetLock("a")
	if err != nil {
		t.Fatalf("ToggleSnippetLock: %v", err)
	}
	if !sn.IsLocked {
		t.Error("expected locked after first toggle")
	}
	sn, err = s.ToggleSnippetLock("a")
	if err != nil {
		t.Fatalf("ToggleSnippetLock: %v", err)
	}
	if sn.IsLocked {
		t.Error("expected unlocked after second toggle")
	}
	if _, err := s.ToggleSnippetLock("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReorderSnippets(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")
	s.CreateSnippets("proj-1", []Snippet{
		testSnippet("a", "proj-1", "CHILDHOOD"),
		testSnippet("b", "proj-1", "CHILDHOOD"),
		testSnippet("c", "proj-1", "PRESENT"),
	})

	if err := s.ReorderSnippets("proj-1", []string{"c", "a", "b"}); err != nil {
		t.Fatalf("ReorderSnippets: %v", err)
	}
	active, err := s.ListActiveSnippets("proj-1", "")
	if err != nil {
		t.Fatalf("ListActiveSnippets: %v", err)
	}
	gotOrder := []string{active[0].ID, active[1].ID, active[2].ID}
	if gotOrder[0] != "c" || gotOrder[1] != "a" || gotOrder[2] != "b" {
		t.Errorf("unexpected order: %v", gotOrder)
	}
	for i, sn := range active {
		if sn.DisplayOrder != i {
			t.Errorf("display_order not dense: %s has %d", sn.ID, sn.DisplayOrder)
		}
	}

	// Mismatched sets fail and change nothing.
	cases := [][]string{
		{"a", "b"},                // missing id
		{"a", "b", "c", "d"},      // extra id
		{"a", "b", "x"},           // unknown id
		{"a", "a", "b"},           // duplicate
	}
	for _, ids := range cases {
		if err := s.ReorderSnippets("proj-1", ids); !errors.Is(err, ErrReorderSetMismatch) {
			t.Errorf("ReorderSnippets(%v): expected ErrReorderSetMismatch, got %v", ids, err)
		}
	}
	after, _ := s.ListActiveSnippets("proj-1", "")
	if after[0].ID != "c" || after[1].ID != "a" || after[2].ID != "b" {
		t.Errorf("failed reorder mutated state: %+v", after)
	}
}

func TestReplaceUnlockedSnippets(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")
	s.CreateSnippets("proj-1", []Snippet{
		testSnippet("a", "proj-1", "CHILDHOOD"),
		testSnippet("b", "proj-1", "CHILDHOOD"),
		testSnippet("c", "proj-1", "PRESENT"),
	})
	if _, err := s.ToggleSnippetLock("a"); err != nil {
		t.Fatalf("ToggleSnippetLock: %v", err)
	}

	drafts := []Snippet{
		testSnippet("d", "proj-1", "CHILDHOOD"),
		testSnippet("e", "proj-1", "PRESENT"),
	}
	created, err := s.ReplaceUnlockedSnippets("proj-1", drafts)
	if err != nil {
		t.Fatalf("ReplaceUnlockedSnippets: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(created))
	}

	active, _ := s.ListActiveSnippets("proj-1", "")
	if len(active) != 3 {
		t.Fatalf("expected 3 active (1 locked + 2 new), got %d", len(active))
	}
	if active[0].ID != "a" || !active[0].IsLocked {
		t.Errorf("locked snippet displaced: %+v", active[0])
	}
	if active[1].ID != "d" || active[2].ID != "e" {
		t.Errorf("drafts not appended in order: %s, %s", active[1].ID, active[2].ID)
	}

	archived, _ := s.ListArchivedSnippets("proj-1")
	archivedIDs := map[string]bool{}
	for _, sn := range archived {
		archivedIDs[sn.ID] = true
	}
	if !archivedIDs["b"] || !archivedIDs["c"] || len(archived) != 2 {
		t.Errorf("unexpected archived set: %+v", archived)
	}
}

func TestListActiveSnippetsPhaseFilter(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")
	s.CreateSnippets("proj-1", []Snippet{
		testSnippet("a", "proj-1", "CHILDHOOD"),
		testSnippet("b", "proj-1", "PRESENT"),
	})

	childhood, err := s.ListActiveSnippets("proj-1", "CHILDHOOD")
	if err != nil {
		t.Fatalf("ListActiveSnippets: %v", err)
	}
	if len(childhood) != 1 || childhood[0].ID != "a" {
		t.Errorf("unexpected filtered result: %+v", childhood)
	}
}

func TestUpdateSnippetFields(t *testing.T) {
	s := openTestStore(t)
	testProject(t, s, "proj-1")
	s.CreateSnippets("proj-1", []Snippet{testSnippet("a", "proj-1", "CHILDHOOD")})

	title := "New Title"
	theme := "legacy"
	if err := s.UpdateSnippetFields("a", &title, nil, &theme, nil); err != nil {
		t.Fatalf("UpdateSnippetFields: %v", err)
	}
	sn, _ := s.GetSnippet("a")
	if sn.Title != "New Title" || sn.Theme != "legacy" || sn.Content != "Content a" {
		t.Errorf("unexpected snippet after edit: %+v", sn)
	}
	if err := s.UpdateSnippetFields("missing", &title, nil, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
