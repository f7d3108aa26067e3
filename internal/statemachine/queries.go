package statemachine

import (
	"fmt"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
)

// ValidActions lists the legal actions of playerID, who must be the player to act.
func (e *Engine) ValidActions(state domain.GameState, playerID string) (rules.ValidActions, error) {
	if !isBettingPhase(state.Phase) {
		return rules.ValidActions{}, domain.ErrHandNotInProgress
	}
	idx := state.PlayerIndex(playerID)
	if idx < 0 {
		return rules.ValidActions{}, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, playerID)
	}
	if idx != state.CurrentPlayerIndex {
		return rules.ValidActions{}, fmt.Errorf("%w: %s", domain.ErrNotYourTurn, playerID)
	}
	return rules.NewBettingContext(state, idx).LegalActions(), nil
}

// CallAmount is what playerID would commit by calling now.
func (e *Engine) CallAmount(state domain.GameState, playerID string) uint32 {
	idx := state.PlayerIndex(playerID)
	if idx < 0 || !state.Players[idx].CanAct() {
		return 0
	}
	return rules.NewBettingContext(state, idx).CallAmount()
}

// MinRaise is the minimum raise increment of the current round.
func (e *Engine) MinRaise(state domain.GameState) uint32 {
	return state.MinRaise
}

func (e *Engine) CurrentPlayer(state domain.GameState) (domain.Player, bool) {
	if !isBettingPhase(state.Phase) || state.CurrentPlayerIndex < 0 || state.CurrentPlayerIndex >= len(state.Players) {
		return domain.Player{}, false
	}
	return state.Players[state.CurrentPlayerIndex], true
}
