package generator

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseSnippetResponse(t *testing.T) {
	raw := `{"snippets": [
		{"title": "The Old Farmhouse", "content": "Summers at the farmhouse shaped everything.", "theme": "family"},
		{"title": "First Bicycle", "content": "A red bicycle and a broken arm.", "theme": "adventure"}
	]}`

	drafts, err := parseSnippetResponse(raw)
	if err != nil {
		t.Fatalf("parseSnippetResponse: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Title != "The Old Farmhouse" || drafts[0].Theme != "family" {
		t.Errorf("unexpected first draft: %+v", drafts[0])
	}
}

func TestParseSnippetResponseStripsFences(t *testing.T) {
	for _, raw := range []string{
		"```json\n{\"snippets\": [{\"title\": \"T\", \"content\": \"C\", \"theme\": \"love\"}]}\n```",
		"```\n{\"snippets\": [{\"title\": \"T\", \"content\": \"C\", \"theme\": \"love\"}]}\n```",
		"  {\"snippets\": [{\"title\": \"T\", \"content\": \"C\", \"theme\": \"love\"}]}  ",
	} {
		drafts, err := parseSnippetResponse(raw)
		if err != nil {
			t.Errorf("parseSnippetResponse(%q): %v", raw[:20], err)
			continue
		}
		if len(drafts) != 1 || drafts[0].Title != "T" {
			t.Errorf("unexpected drafts for %q: %+v", raw[:20], drafts)
		}
	}
}

func TestParseSnippetResponseTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 450)
	raw := `{"snippets": [{"title": "T", "content": "` + long + `", "theme": "growth"}]}`

	drafts, err := parseSnippetResponse(raw)
	if err != nil {
		t.Fatalf("parseSnippetResponse: %v", err)
	}
	if len(drafts[0].Content) != maxSnippetContent {
		t.Errorf("content length = %d, want %d", len(drafts[0].Content), maxSnippetContent)
	}
	if !strings.HasSuffix(drafts[0].Content, "...") {
		t.Error("truncated content missing ellipsis")
	}
}

func TestParseSnippetResponseCountsRunes(t *testing.T) {
	// 200 runes but 400 bytes; must survive untouched.
	short := strings.Repeat("é", 200)
	// 320 runes; must truncate on rune boundaries, never mid-rune.
	long := strings.Repeat("é", 320)
	raw := `{"snippets": [
		{"title": "A", "content": "` + short + `", "theme": "family"},
		{"title": "B", "content": "` + long + `", "theme": "family"}
	]}`

	drafts, err := parseSnippetResponse(raw)
	if err != nil {
		t.Fatalf("parseSnippetResponse: %v", err)
	}
	if drafts[0].Content != short {
		t.Errorf("short multi-byte content modified: %d runes", len([]rune(drafts[0].Content)))
	}
	if got := len([]rune(drafts[1].Content)); got != maxSnippetContent {
		t.Errorf("truncated rune count = %d, want %d", got, maxSnippetContent)
	}
	if !utf8.ValidString(drafts[1].Content) {
		t.Error("truncation produced invalid UTF-8")
	}
	if !strings.HasSuffix(drafts[1].Content, "...") {
		t.Error("truncated content missing ellipsis")
	}
}

func TestParseSnippetResponseNormalizesThemes(t *testing.T) {
	raw := `{"snippets": [
		{"title": "A", "content": "c", "theme": " LEGACY "},
		{"title": "B", "content": "c", "theme": "Amour de la vie"},
		{"title": "C", "content": "c", "theme": ""}
	]}`

	drafts, err := parseSnippetResponse(raw)
	if err != nil {
		t.Fatalf("parseSnippetResponse: %v", err)
	}
	if drafts[0].Theme != "legacy" {
		t.Errorf("theme not normalized: %q", drafts[0].Theme)
	}
	// Themes outside the suggested vocabulary are kept as-is, lowercased.
	if drafts[1].Theme != "amour de la vie" {
		t.Errorf("free-form theme rewritten: %q", drafts[1].Theme)
	}
	if drafts[2].Theme != defaultTheme {
		t.Errorf("missing theme not defaulted: %q", drafts[2].Theme)
	}
}

func TestParseSnippetResponseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"not json at all",
		`{"snippets": []}`,
		`{"snippets": [{"title": "", "content": ""}]}`,
	} {
		if _, err := parseSnippetResponse(raw); !errors.Is(err, ErrBadResponse) {
			t.Errorf("parseSnippetResponse(%q): expected ErrBadResponse, got %v", raw, err)
		}
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	req := SummaryRequest{
		PhaseLabels: []string{"Childhood", "Present Day"},
		Transcript: []Turn{
			{Role: "assistant", Content: "What do you remember most?"},
			{Role: "user", Content: "Playing soccer by the river."},
		},
	}
	prompt := buildSummaryPrompt(req)
	for _, want := range []string{"Childhood, Present Day", "Playing soccer by the river.", "Subject:", "Interviewer:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	all := buildSummaryPrompt(SummaryRequest{Transcript: req.Transcript})
	if !strings.Contains(all, "whole conversation") {
		t.Error("unfiltered prompt missing whole-conversation instruction")
	}
	if strings.Contains(all, "only these chapters") {
		t.Error("unfiltered prompt carries a chapter filter")
	}
}

func TestBuildSnippetPromptIncludesContext(t *testing.T) {
	req := ChapterRequest{
		Phase:           "CHILDHOOD",
		PhaseLabel:      "Childhood",
		TargetCount:     3,
		LockedSummaries: []string{"The Old Farmhouse"},
		Transcript: []Turn{
			{Role: "assistant", Content: "Tell me about growing up."},
			{Role: "user", Content: "We lived near the river."},
		},
	}
	prompt := buildSnippetPrompt(req)

	for _, want := range []string{"Childhood", "The Old Farmhouse", "We lived near the river.", "Subject:", "Interviewer:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
