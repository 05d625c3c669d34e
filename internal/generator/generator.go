// Package generator produces interviewer replies and story snippet drafts
// from conversation transcripts. The Gemini-backed implementation lives in
// gemini.go; consumers depend only on the Generator interface so tests can
// substitute a fake.
package generator

import "context"

// Turn is one conversation message as seen by the model.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChapterRequest asks for snippet drafts covering a single chapter.
type ChapterRequest struct {
	Phase           string
	PhaseLabel      string
	Transcript      []Turn   // chapter messages, markers already removed
	LockedSummaries []string // titles of locked snippets to avoid duplicating
	TargetCount     int
}

// SummaryRequest asks for a prose summary of interview material.
type SummaryRequest struct {
	PhaseLabels []string // chapters covered, empty for the whole interview
	Transcript  []Turn   // markers already removed
}

// SnippetDraft is a generated snippet before it is persisted.
type SnippetDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Theme   string `json:"theme"`
}

// Generator produces conversational replies and chapter snippets.
type Generator interface {
	// GenerateReply returns the interviewer's next message given the recent
	// history and the current phase's instruction.
	GenerateReply(ctx context.Context, history []Turn, instruction string) (string, error)

	// GenerateSummary returns a prose summary of the supplied transcript.
	GenerateSummary(ctx context.Context, req SummaryRequest) (string, error)

	// GenerateChapterSnippets returns snippet drafts for one chapter.
	GenerateChapterSnippets(ctx context.Context, req ChapterRequest) ([]SnippetDraft, error)
}
