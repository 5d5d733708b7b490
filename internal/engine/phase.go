package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/aospan/internal/model"
)

// ErrInvalidTransition is returned for a phase change outside the transition table.
var ErrInvalidTransition = errors.New("invalid phase transition")

var transitions = map[model.Phase]model.Phase{
	model.PhaseStart:       model.PhaseLetterTrain,
	model.PhaseLetterTrain: model.PhaseMathTrain,
	model.PhaseMathTrain:   model.PhaseMixedTrain,
	model.PhaseMixedTrain:  model.PhaseMain,
	model.PhaseMain:        model.PhaseEnd,
}

// subStates lists the stages each nested sub-state may be entered from.
var subStates = map[model.Phase]map[model.Phase]bool{
	model.PhaseMath: {
		model.PhaseMathTrain:  true,
		model.PhaseMixedTrain: true,
		model.PhaseMain:       true,
	},
	model.PhaseRecall: {
		model.PhaseLetterTrain: true,
		model.PhaseMixedTrain:  true,
		model.PhaseMain:        true,
	},
}

type phaseMachine struct {
	mu       sync.RWMutex
	stage    model.Phase
	sub      model.Phase
	onChange func(from, to model.Phase)
}

func newPhaseMachine(onChange func(from, to model.Phase)) *phaseMachine {
	return &phaseMachine{stage: model.PhaseStart, onChange: onChange}
}

// Current returns the active sub-state if any, otherwise the stage.
func (m *phaseMachine) Current() model.Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sub != "" {
		return m.sub
	}
	return m.stage
}

// Stage returns the enclosing stage, ignoring sub-states.
func (m *phaseMachine) Stage() model.Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stage
}

func (m *phaseMachine) Advance(to model.Phase) error {
	m.mu.Lock()
	from, active := m.stage, m.sub
	if active != "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s while %s is active", ErrInvalidTransition, from, to, active)
	}
	if next, ok := transitions[from]; !ok || next != to {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.stage = to
	m.mu.Unlock()
	m.notify(from, to)
	return nil
}

func (m *phaseMachine) Enter(sub model.Phase) error {
	m.mu.Lock()
	stage := m.stage
	if m.sub != "" || !subStates[sub][stage] {
		active := m.sub
		m.mu.Unlock()
		if active != "" {
			return fmt.Errorf("%w: %s while %s is active", ErrInvalidTransition, sub, active)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stage, sub)
	}
	m.sub = sub
	m.mu.Unlock()
	m.notify(stage, sub)
	return nil
}

func (m *phaseMachine) Exit() {
	m.mu.Lock()
	sub := m.sub
	m.sub = ""
	stage := m.stage
	m.mu.Unlock()
	if sub != "" {
		m.notify(sub, stage)
	}
}

func (m *phaseMachine) notify(from, to model.Phase) {
	if m.onChange != nil {
		m.onChange(from, to)
	}
}
