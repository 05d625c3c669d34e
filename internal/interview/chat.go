package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeloom/lifeloom/internal/generator"
	"github.com/lifeloom/lifeloom/internal/phase"
	"github.com/lifeloom/lifeloom/internal/storage"
)

// historyWindow is how many recent messages the generator sees per reply.
const historyWindow = 20

// ErrReplyFailed wraps generator errors during a chat turn. The user
// message is already persisted when this is returned; retrying the turn is
// safe.
var ErrReplyFailed = errors.New("reply generation failed")

// ChatResult is the outcome of one conversational turn.
type ChatResult struct {
	Reply string
	State State
}

// NextOnResponse decides whether a user message moves the interview. The
// only content-independent automatic transition is GREETING to
// AGE_SELECTION once the caller signals the subject confirmed they are
// ready; interview phases are sticky until an explicit advance. The
// affirmative-intent check itself belongs to the caller, not to this
// engine.
func NextOnResponse(current phase.Phase, readyConfirmed bool) (phase.Phase, bool) {
	if current == phase.Greeting && readyConfirmed {
		return phase.AgeSelection, true
	}
	return current, false
}

// Chat runs one interview turn: persist the user message under the current
// phase, apply the response-driven transition policy, and ask the generator
// for the interviewer's reply. The user message survives a generator
// failure; the turn can be retried.
func (e *Engine) Chat(ctx context.Context, projectID, text string, readyConfirmed bool) (ChatResult, error) {
	release, err := e.leases.Acquire(ctx, projectID)
	if err != nil {
		return ChatResult{}, err
	}
	defer release()

	st, err := e.loadState(projectID)
	if err != nil {
		return ChatResult{}, err
	}
	cur := st.CurrentPhase()

	userMsg := storage.Message{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Role:         "user",
		Content:      text,
		PhaseContext: string(cur),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.AppendMessage(userMsg); err != nil {
		return ChatResult{}, fmt.Errorf("appending user message: %w", err)
	}

	if next, moved := NextOnResponse(cur, readyConfirmed); moved {
		st.Project.CurrentPhase = string(next)
		if err := e.saveState(&st); err != nil {
			return ChatResult{}, err
		}
		cur = next
	}

	recent, err := e.store.ListRecentMessages(projectID, historyWindow)
	if err != nil {
		return ChatResult{}, fmt.Errorf("loading history: %w", err)
	}
	history := make([]generator.Turn, 0, len(recent))
	for _, m := range recent {
		history = append(history, generator.Turn{Role: m.Role, Content: m.Content})
	}

	reply, err := e.gen.GenerateReply(ctx, history, Instruction(cur))
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}

	assistantMsg := storage.Message{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Role:         "assistant",
		Content:      reply,
		PhaseContext: string(cur),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.AppendMessage(assistantMsg); err != nil {
		return ChatResult{}, fmt.Errorf("appending assistant message: %w", err)
	}

	return ChatResult{Reply: reply, State: st}, nil
}
