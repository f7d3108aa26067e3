package tablerunner

import (
	"context"
	"fmt"
	"sync"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
	"github.com/imaddar/holdem-engine/internal/statemachine"
)

// Table owns the state of one game and serialises every mutation through
// the engine. Readers get snapshots; waiters are woken on each change.
type Table struct {
	engine *statemachine.Engine

	mu      sync.Mutex
	state   domain.GameState
	changed chan struct{}
}

func NewTable(engine *statemachine.Engine, state domain.GameState) *Table {
	return &Table{
		engine:  engine,
		state:   state,
		changed: make(chan struct{}),
	}
}

// Snapshot returns a deep copy of the current state.
func (t *Table) Snapshot() domain.GameState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

func (t *Table) StartHand() (domain.GameState, error) {
	return t.update(t.engine.StartHand)
}

func (t *Table) EndHand() (domain.GameState, error) {
	return t.update(t.engine.EndHand)
}

// Submit applies action. On error the table state is unchanged.
func (t *Table) Submit(action domain.Action) (domain.GameState, error) {
	return t.update(func(state domain.GameState) (domain.GameState, error) {
		return t.engine.ApplyAction(state, action)
	})
}

// Fallback checks for playerID, or folds when a check is illegal.
func (t *Table) Fallback(playerID string) (domain.GameState, error) {
	return t.update(func(state domain.GameState) (domain.GameState, error) {
		return applyFallback(t.engine, state, playerID)
	})
}

func (t *Table) ValidActions(playerID string) (rules.ValidActions, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.ValidActions(t.state, playerID)
}

// WaitTurn blocks until playerID is the player to act and returns the state
// at that moment. It fails with ErrPlayerOut once the player is eliminated
// or the game is over.
func (t *Table) WaitTurn(ctx context.Context, playerID string) (domain.GameState, error) {
	for {
		t.mu.Lock()
		state, changed := t.state, t.changed
		t.mu.Unlock()

		idx := state.PlayerIndex(playerID)
		if idx < 0 {
			return domain.GameState{}, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, playerID)
		}
		if state.GameOver || state.Players[idx].Status == domain.PlayerStatusEliminated {
			return domain.GameState{}, fmt.Errorf("%w: %s", ErrPlayerOut, playerID)
		}
		if state.CurrentPlayerIndex >= 0 && state.Players[state.CurrentPlayerIndex].ID == playerID {
			return state.Clone(), nil
		}

		select {
		case <-ctx.Done():
			return domain.GameState{}, ctx.Err()
		case <-changed:
		}
	}
}

// WaitPhase blocks until the table reaches phase.
func (t *Table) WaitPhase(ctx context.Context, phase domain.Phase) (domain.GameState, error) {
	for {
		t.mu.Lock()
		state, changed := t.state, t.changed
		t.mu.Unlock()

		if state.Phase == phase {
			return state.Clone(), nil
		}

		select {
		case <-ctx.Done():
			return domain.GameState{}, ctx.Err()
		case <-changed:
		}
	}
}

func (t *Table) update(apply func(domain.GameState) (domain.GameState, error)) (domain.GameState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := apply(t.state)
	if err != nil {
		return domain.GameState{}, err
	}
	t.state = next
	close(t.changed)
	t.changed = make(chan struct{})
	return next.Clone(), nil
}
