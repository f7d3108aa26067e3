package policy

import (
	"errors"
	"fmt"

	"github.com/thoas/go-funk"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
)

var ErrNotToAct = errors.New("player is not the one to act")

// Policy decides an action for playerID from a read-only state snapshot.
// The engine validates every decision again, so a policy may be wrong but
// can never bypass the rules.
type Policy interface {
	Decide(state domain.GameState, playerID string) (domain.Action, error)
}

type Func func(state domain.GameState, playerID string) (domain.Action, error)

func (f Func) Decide(state domain.GameState, playerID string) (domain.Action, error) {
	return f(state, playerID)
}

// ByName returns the policy registered under name.
func ByName(name string) (Policy, error) {
	switch name {
	case "passive", "":
		return Passive{}, nil
	case "strength":
		return NewHandStrength(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// Names lists the policies ByName understands.
func Names() []string {
	return []string{"passive", "strength"}
}

func legalFor(state domain.GameState, playerID string) (int, rules.ValidActions, error) {
	idx := state.PlayerIndex(playerID)
	if idx < 0 {
		return -1, rules.ValidActions{}, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, playerID)
	}
	if idx != state.CurrentPlayerIndex {
		return -1, rules.ValidActions{}, fmt.Errorf("%w: %s", ErrNotToAct, playerID)
	}
	return idx, rules.NewBettingContext(state, idx).LegalActions(), nil
}

func action(kind domain.ActionType, playerID string, amount uint32) domain.Action {
	return domain.Action{Type: kind, PlayerID: playerID, Amount: amount}
}

func has(valid rules.ValidActions, kind domain.ActionType) bool {
	return funk.Contains(valid.Actions, kind)
}

// Passive never puts in a chip it does not have to: it checks when it can
// and calls otherwise.
type Passive struct{}

func (Passive) Decide(state domain.GameState, playerID string) (domain.Action, error) {
	_, valid, err := legalFor(state, playerID)
	if err != nil {
		return domain.Action{}, err
	}
	switch {
	case has(valid, domain.ActionCheck):
		return action(domain.ActionCheck, playerID, 0), nil
	case has(valid, domain.ActionCall):
		return action(domain.ActionCall, playerID, 0), nil
	default:
		return action(domain.ActionFold, playerID, 0), nil
	}
}
