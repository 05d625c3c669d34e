package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadResponse is returned when the model output cannot be parsed into
// usable snippet drafts.
var ErrBadResponse = errors.New("unusable model response")

// maxSnippetContent caps snippet content length, counted in runes.
const maxSnippetContent = 300

const defaultTheme = "growth"

func buildSnippetPrompt(req ChapterRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are distilling a life-story interview into short story snippets.

The conversation below covers the "%s" chapter of the subject's life.
Write %d distinct snippets capturing the most meaningful moments, people,
and feelings the subject shared. Each snippet is a self-contained vignette
written in warm third person, at most %d characters.

`, req.PhaseLabel, req.TargetCount, maxSnippetContent)

	if len(req.LockedSummaries) > 0 {
		b.WriteString("These snippets already exist and must not be duplicated:\n")
		for _, t := range req.LockedSummaries {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	b.WriteString("Conversation:\n")
	for _, turn := range req.Transcript {
		role := "Interviewer"
		if turn.Role == "user" {
			role = "Subject"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
	}

	fmt.Fprintf(&b, `
Respond with JSON only, in this exact shape:
{"snippets": [{"title": "...", "content": "...", "theme": "..."}]}

Prefer a theme from: family, growth, challenge, adventure, love, legacy, identity, friendship. A different single word is acceptable when none fits.
`)
	return b.String()
}

func buildSummaryPrompt(req SummaryRequest) string {
	var b strings.Builder
	b.WriteString("You are summarizing a life-story interview.\n")
	if len(req.PhaseLabels) > 0 {
		fmt.Fprintf(&b, "Cover only these chapters of the subject's life: %s.\n", strings.Join(req.PhaseLabels, ", "))
	} else {
		b.WriteString("Cover the whole conversation.\n")
	}
	b.WriteString(`Write a warm, factual prose summary of what the subject shared: the
people, places, and turning points, in chronological order. Two or three
paragraphs at most. Respond with the summary text only.

Conversation:
`)
	for _, turn := range req.Transcript {
		role := "Interviewer"
		if turn.Role == "user" {
			role = "Subject"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
	}
	return b.String()
}

type snippetEnvelope struct {
	Snippets []SnippetDraft `json:"snippets"`
}

// parseSnippetResponse extracts snippet drafts from a model response.
// Markdown code fences are tolerated. Drafts with empty titles or contents
// are dropped; overlong contents are truncated. The prompt suggests a theme
// vocabulary but any non-empty theme the model picks is kept, lowercased;
// only a missing theme falls back to the default.
func parseSnippetResponse(raw string) ([]SnippetDraft, error) {
	cleaned := stripFences(raw)

	var env snippetEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	var drafts []SnippetDraft
	for _, d := range env.Snippets {
		d.Title = strings.TrimSpace(d.Title)
		d.Content = strings.TrimSpace(d.Content)
		if d.Title == "" || d.Content == "" {
			continue
		}
		if runes := []rune(d.Content); len(runes) > maxSnippetContent {
			d.Content = string(runes[:maxSnippetContent-3]) + "..."
		}
		d.Theme = strings.ToLower(strings.TrimSpace(d.Theme))
		if d.Theme == "" {
			d.Theme = defaultTheme
		}
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no snippets in response", ErrBadResponse)
	}
	return drafts, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, that some models wrap JSON output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		s = s[idx+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
