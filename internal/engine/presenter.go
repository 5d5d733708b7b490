package engine

import (
	"context"
	"time"

	"github.com/verte-zerg/aospan/internal/model"
)

// ScreenKind selects what a Screen displays.
type ScreenKind int

// Screen kinds.
const (
	ScreenMessage ScreenKind = iota
	ScreenLetter
	ScreenMask
	ScreenBreak
	ScreenEnd
)

// Screen is a fire-and-forget display request.
type Screen struct {
	Kind   ScreenKind
	Title  string
	Text   string
	Letter string
}

// MathPrompt asks the participant to verify a statement.
// A zero Deadline means the trial is untimed.
type MathPrompt struct {
	Statement model.MathStatement
	Deadline  time.Duration
}

// Responder receives the answer to one math prompt. Respond reports whether
// the answer was accepted; answers after the trial resolved are rejected.
type Responder interface {
	Respond(key bool) bool
}

// RecallRequest asks the participant to reproduce Length letters in order,
// choosing from Pool.
type RecallRequest struct {
	Length int
	Pool   []string
}

// Presenter displays stimuli and relays participant input.
type Presenter interface {
	// AwaitStart blocks until the participant starts the session.
	AwaitStart(ctx context.Context) error
	// Show replaces the current display.
	Show(ctx context.Context, screen Screen)
	// PromptMath displays a statement and later delivers the answer to r.
	// It must not block waiting for the answer.
	PromptMath(ctx context.Context, prompt MathPrompt, r Responder)
	// PromptRecall blocks until the participant confirms a recall.
	PromptRecall(ctx context.Context, req RecallRequest) ([]string, error)
}

// Sink receives the sealed session log. Dispatch must not block on delivery.
type Sink interface {
	Dispatch(log model.SessionLog)
}
