// Package interview implements the phase state machine driving a guided
// life-story interview: age selection, explicit advancement between
// chapters, non-linear jumps, and display-only chapter renames.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeloom/lifeloom/internal/generator"
	"github.com/lifeloom/lifeloom/internal/locks"
	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

var (
	// ErrPhaseAlreadySelected is returned when selecting an age bracket on a
	// project that already has one.
	ErrPhaseAlreadySelected = errors.New("age bracket already selected")

	// ErrNoSuccessorPhase is returned when advancing past the last phase.
	ErrNoSuccessorPhase = errors.New("no successor phase")

	// ErrPhaseNotInOrder is returned when a jump or rename targets a phase
	// outside the project's resolved phase order.
	ErrPhaseNotInOrder = errors.New("phase not in interview order")

	// ErrNonRenamablePhase is returned when renaming GREETING or
	// AGE_SELECTION.
	ErrNonRenamablePhase = errors.New("phase cannot be renamed")

	// ErrAgeNotSelected is returned for operations that need a resolved
	// phase order before an age bracket was chosen.
	ErrAgeNotSelected = errors.New("age bracket not selected")
)

// maxChapterLabel caps custom chapter names, in runes.
const maxChapterLabel = 40

// Engine owns every mutation of a project's interview state. All writes run
// under the project's lease and bump the project version.
type Engine struct {
	store  *storage.Store
	gen    generator.Generator
	leases *locks.Registry
	log    *slog.Logger
}

func NewEngine(store *storage.Store, gen generator.Generator, leases *locks.Registry, log *slog.Logger) *Engine {
	return &Engine{store: store, gen: gen, leases: leases, log: log}
}

// State is a read view of a project's interview position.
type State struct {
	Project storage.Project
	Order   []phase.Phase          // nil until an age bracket is selected
	Overlay map[phase.Phase]string // custom chapter labels, renamed phases only
}

// CurrentPhase returns the project's current phase.
func (s State) CurrentPhase() phase.Phase {
	return phase.Phase(s.Project.CurrentPhase)
}

// ChapterLabel returns the display label for a phase, honoring any rename.
func (s State) ChapterLabel(p phase.Phase) string {
	if label, ok := s.Overlay[p]; ok {
		return label
	}
	return p.Label()
}

// Progress returns how far through the resolved order the interview is, as a
// 0..100 percentage. Zero until an age bracket is selected.
func (s State) Progress() int {
	if len(s.Order) < 2 {
		return 0
	}
	idx := indexOf(s.Order, s.CurrentPhase())
	if idx < 0 {
		return 0
	}
	return idx * 100 / (len(s.Order) - 1)
}

// CreateProject starts a new interview in the GREETING phase.
func (e *Engine) CreateProject(title string) (State, error) {
	p := storage.Project{
		ID:           uuid.NewString(),
		Title:        title,
		CurrentPhase: string(phase.Greeting),
		Status:       "draft",
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateProject(p); err != nil {
		return State{}, fmt.Errorf("creating project: %w", err)
	}
	return State{Project: p, Overlay: map[phase.Phase]string{}}, nil
}

// GetState loads the interview state of a project.
func (e *Engine) GetState(projectID string) (State, error) {
	return e.loadState(projectID)
}

// SelectAge records the user's age bracket, resolves the phase order, and
// moves the interview straight to its first chapter. AGE_SELECTION is
// collapsed into this single action; the interview never rests there.
func (e *Engine) SelectAge(ctx context.Context, projectID string, bracket phase.AgeBracket) (State, error) {
	if !bracket.IsValid() {
		return State{}, fmt.Errorf("%w: %q", phase.ErrInvalidAgeBracket, bracket)
	}

	release, err := e.leases.Acquire(ctx, projectID)
	if err != nil {
		return State{}, err
	}
	defer release()

	st, err := e.loadState(projectID)
	if err != nil {
		return State{}, err
	}
	if st.Project.AgeBracket != "" {
		return State{}, fmt.Errorf("%w: %s", ErrPhaseAlreadySelected, st.Project.AgeBracket)
	}

	order, err := phase.Resolve(bracket)
	if err != nil {
		return State{}, err
	}
	first := order[2] // past GREETING and AGE_SELECTION

	st.Project.AgeBracket = string(bracket)
	st.Project.CurrentPhase = string(first)
	st.Project.Status = "in_progress"
	st.Order = order

	if err := e.saveState(&st); err != nil {
		return State{}, err
	}
	e.log.Info("age bracket selected", "project", projectID, "bracket", bracket, "phase", first)
	return st, nil
}

// AdvanceExplicit moves the interview to the next phase in the resolved
// order and appends the transition marker to the message log.
func (e *Engine) AdvanceExplicit(ctx context.Context, projectID string) (State, error) {
	release, err := e.leases.Acquire(ctx, projectID)
	if err != nil {
		return State{}, err
	}
	defer release()

	st, err := e.loadState(projectID)
	if err != nil {
		return State{}, err
	}
	if len(st.Order) == 0 {
		return State{}, ErrAgeNotSelected
	}

	cur := st.CurrentPhase()
	idx := indexOf(st.Order, cur)
	if idx < 0 || idx == len(st.Order)-1 || cur == phase.Synthesis {
		return State{}, fmt.Errorf("%w: at %s", ErrNoSuccessorPhase, cur)
	}
	next := st.Order[idx+1]

	return e.transition(projectID, st, next)
}

// JumpTo moves the interview to any chapter (or SYNTHESIS) of the resolved
// order without requiring earlier phases to be complete. Appends the same
// transition marker as AdvanceExplicit.
func (e *Engine) JumpTo(ctx context.Context, projectID string, target phase.Phase) (State, error) {
	release, err := e.leases.Acquire(ctx, projectID)
	if err != nil {
		return State{}, err
	}
	defer release()

	st, err := e.loadState(projectID)
	if err != nil {
		return State{}, err
	}
	if len(st.Order) == 0 {
		return State{}, ErrAgeNotSelected
	}
	if target == phase.Greeting || target == phase.AgeSelection {
		return State{}, fmt.Errorf("%w: %s precedes the interview", ErrPhaseNotInOrder, target)
	}
	if indexOf(st.Order, target) < 0 {
		return State{}, fmt.Errorf("%w: %s", ErrPhaseNotInOrder, target)
	}
	if target == st.CurrentPhase() {
		return State{}, fmt.Errorf("%w: already in %s", ErrPhaseNotInOrder, target)
	}

	return e.transition(projectID, st, target)
}

// transition applies a phase change. The marker message and the versioned
// project update land in one storage transaction, so a stale version never
// strands a marker in the log. Caller holds the lease.
func (e *Engine) transition(projectID string, st State, to phase.Phase) (State, error) {
	if to == phase.Synthesis {
		st.Project.Status = "synthesis"
	}
	st.Project.CurrentPhase = string(to)

	marker := storage.Message{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Role:         "user",
		Content:      phase.TransitionMarker(to),
		PhaseContext: string(to),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.ApplyPhaseTransition(st.Project, marker); err != nil {
		return State{}, err
	}
	st.Project.Version++

	e.log.Info("phase transition", "project", projectID, "phase", to)
	return st, nil
}

// RenameChapter sets a custom display label for a chapter. Labels longer
// than the maximum are truncated; an empty label, or one equal to the
// default, removes the override instead. Renames never touch phase order or
// interviewer prompts.
func (e *Engine) RenameChapter(ctx context.Context, projectID string, p phase.Phase, label string) (State, error) {
	if !p.IsValid() {
		return State{}, fmt.Errorf("%w: %q", ErrPhaseNotInOrder, p)
	}
	if p == phase.Greeting || p == phase.AgeSelection {
		return State{}, fmt.Errorf("%w: %s", ErrNonRenamablePhase, p)
	}

	release, err := e.leases.Acquire(ctx, projectID)
	if err != nil {
		return State{}, err
	}
	defer release()

	st, err := e.loadState(projectID)
	if err != nil {
		return State{}, err
	}

	label = truncateRunes(strings.TrimSpace(label), maxChapterLabel)
	if label == "" || label == p.Label() {
		delete(st.Overlay, p)
	} else {
		st.Overlay[p] = label
	}

	if err := e.saveState(&st); err != nil {
		return State{}, err
	}
	return st, nil
}

// RenameProject updates a project's title.
func (e *Engine) RenameProject(ctx context.Context, projectID, title string) (State, error) {
	release, err := e.leases.Acquire(ctx, projectID)
	if err != nil {
		return State{}, err
	}
	defer release()

	st, err := e.loadState(projectID)
	if err != nil {
		return State{}, err
	}
	st.Project.Title = title
	if err := e.saveState(&st); err != nil {
		return State{}, err
	}
	return st, nil
}

// ResetChapter removes any custom label for a chapter. Idempotent.
func (e *Engine) ResetChapter(ctx context.Context, projectID string, p phase.Phase) (State, error) {
	return e.RenameChapter(ctx, projectID, p, "")
}

func (e *Engine) loadState(projectID string) (State, error) {
	p, err := e.store.GetProject(projectID)
	if err != nil {
		return State{}, err
	}

	overlay := map[phase.Phase]string{}
	if p.ChapterNames != "" {
		if err := json.Unmarshal([]byte(p.ChapterNames), &overlay); err != nil {
			return State{}, fmt.Errorf("parsing chapter names of %s: %w", projectID, err)
		}
	}

	var order []phase.Phase
	if p.AgeBracket != "" {
		order, err = phase.Resolve(phase.AgeBracket(p.AgeBracket))
		if err != nil {
			return State{}, err
		}
	}
	return State{Project: p, Order: order, Overlay: overlay}, nil
}

func (e *Engine) saveState(st *State) error {
	if len(st.Overlay) == 0 {
		st.Project.ChapterNames = ""
	} else {
		raw, err := json.Marshal(st.Overlay)
		if err != nil {
			return fmt.Errorf("encoding chapter names: %w", err)
		}
		st.Project.ChapterNames = string(raw)
	}
	if err := e.store.UpdateProjectState(st.Project); err != nil {
		return err
	}
	st.Project.Version++
	return nil
}

func indexOf(order []phase.Phase, p phase.Phase) int {
	for i, o := range order {
		if o == p {
			return i
		}
	}
	return -1
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
