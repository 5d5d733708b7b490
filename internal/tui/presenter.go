package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/aospan/internal/engine"
)

type sender interface {
	Send(msg tea.Msg)
}

// Presenter bridges the session engine and a running Bubble Tea program.
type Presenter struct {
	model   *Model
	started chan struct{}
	out     sender
}

// NewPresenter returns a presenter and the model to run in a tea.Program.
func NewPresenter() *Presenter {
	started := make(chan struct{})
	return &Presenter{model: newModel(started), started: started}
}

// Model returns the tea.Model driven by this presenter.
func (p *Presenter) Model() tea.Model {
	return p.model
}

// Bind routes display messages to program. It must be called before the
// session runs.
func (p *Presenter) Bind(program sender) {
	p.out = program
}

// AwaitStart implements engine.Presenter.
func (p *Presenter) AwaitStart(ctx context.Context) error {
	select {
	case <-p.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Show implements engine.Presenter.
func (p *Presenter) Show(_ context.Context, screen engine.Screen) {
	p.send(screenMsg{screen: screen})
}

// PromptMath implements engine.Presenter.
func (p *Presenter) PromptMath(_ context.Context, prompt engine.MathPrompt, r engine.Responder) {
	p.send(mathMsg{prompt: prompt, responder: r})
}

// PromptRecall implements engine.Presenter.
func (p *Presenter) PromptRecall(ctx context.Context, req engine.RecallRequest) ([]string, error) {
	if p.out == nil {
		return nil, fmt.Errorf("presenter is not bound to a program")
	}
	reply := make(chan []string, 1)
	p.send(recallMsg{req: req, reply: reply})
	select {
	case picked := <-reply:
		return picked, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Presenter) send(msg tea.Msg) {
	if p.out != nil {
		p.out.Send(msg)
	}
}
