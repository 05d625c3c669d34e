package interview

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeloom/lifeloom/internal/generator"
	"github.com/lifeloom/lifeloom/internal/phase"
)

var (
	// ErrNoSummaryMaterial is returned when no messages match the requested
	// chapters.
	ErrNoSummaryMaterial = errors.New("no conversation to summarize")

	// ErrSummaryFailed wraps generator errors while producing a summary.
	ErrSummaryFailed = errors.New("summary generation failed")
)

// Summary is the outcome of a chapter summary request.
type Summary struct {
	Text   string
	Phases []phase.Phase // chapters covered, empty for the whole interview
}

// Summarize produces a prose summary of the interview so far. With phases
// given, only messages logged under those chapters are covered; otherwise
// the whole conversation is. Transition markers never reach the generator.
// Read-only, so it runs outside the project lease.
func (e *Engine) Summarize(ctx context.Context, projectID string, phases []phase.Phase) (Summary, error) {
	for _, p := range phases {
		if !p.IsChapter() {
			return Summary{}, fmt.Errorf("%w: %s is not a chapter", ErrPhaseNotInOrder, p)
		}
	}

	st, err := e.loadState(projectID)
	if err != nil {
		return Summary{}, err
	}

	selected := make(map[phase.Phase]bool, len(phases))
	for _, p := range phases {
		selected[p] = true
	}

	msgs, err := e.store.ListMessages(projectID)
	if err != nil {
		return Summary{}, fmt.Errorf("loading messages: %w", err)
	}

	var transcript []generator.Turn
	for _, m := range msgs {
		if phase.IsTransitionMarker(m.Content) {
			continue
		}
		if len(selected) > 0 && !selected[phase.Phase(m.PhaseContext)] {
			continue
		}
		transcript = append(transcript, generator.Turn{Role: m.Role, Content: m.Content})
	}
	if len(transcript) == 0 {
		return Summary{}, ErrNoSummaryMaterial
	}

	labels := make([]string, 0, len(phases))
	for _, p := range phases {
		labels = append(labels, st.ChapterLabel(p))
	}

	text, err := e.gen.GenerateSummary(ctx, generator.SummaryRequest{
		PhaseLabels: labels,
		Transcript:  transcript,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrSummaryFailed, err)
	}
	return Summary{Text: text, Phases: phases}, nil
}
