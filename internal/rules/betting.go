package rules

import (
	"github.com/imaddar/holdem-engine/internal/domain"
)

// BettingContext is everything needed to judge one player's options.
type BettingContext struct {
	CurrentBet       uint32
	PlayerCurrentBet uint32
	MinRaise         uint32
	PlayerChips      uint32
}

// ValidActions describes what the player to act may do. MinRaiseTo and
// MaxRaiseTo are raise-to totals for the round; MinBet is a bet size.
type ValidActions struct {
	Actions    []domain.ActionType `json:"actions"`
	CallAmount uint32              `json:"call_amount"`
	MinBet     uint32              `json:"min_bet"`
	MinRaiseTo uint32              `json:"min_raise_to"`
	MaxRaiseTo uint32              `json:"max_raise_to"`
}

func (v ValidActions) Has(kind domain.ActionType) bool {
	for _, a := range v.Actions {
		if a == kind {
			return true
		}
	}
	return false
}

func NewBettingContext(state domain.GameState, playerIdx int) BettingContext {
	p := state.Players[playerIdx]
	return BettingContext{
		CurrentBet:       state.CurrentBet,
		PlayerCurrentBet: p.CurrentBet,
		MinRaise:         state.MinRaise,
		PlayerChips:      p.Chips,
	}
}

func (c BettingContext) toCall() uint32 {
	if c.CurrentBet <= c.PlayerCurrentBet {
		return 0
	}
	return c.CurrentBet - c.PlayerCurrentBet
}

func (c BettingContext) CanCheck() bool {
	return c.PlayerCurrentBet == c.CurrentBet
}

func (c BettingContext) CanCall() bool {
	return c.toCall() > 0 && c.PlayerChips > 0
}

// CallAmount is what a call commits, capped at the player's stack.
func (c BettingContext) CallAmount() uint32 {
	return min(c.toCall(), c.PlayerChips)
}

func (c BettingContext) CanAllIn() bool {
	return c.PlayerChips > 0
}

// ValidateBet checks an opening bet of amount chips.
func (c BettingContext) ValidateBet(amount uint32) error {
	if c.CurrentBet > 0 {
		return domain.NewIllegalAction(domain.ActionBet, domain.ReasonBetAlreadyExists)
	}
	if amount == 0 {
		return domain.NewIllegalAction(domain.ActionBet, domain.ReasonInvalidAmount)
	}
	if amount > c.PlayerChips {
		return domain.NewIllegalAction(domain.ActionBet, domain.ReasonInsufficientChips)
	}
	if amount < c.MinRaise && amount != c.PlayerChips {
		return domain.NewIllegalAction(domain.ActionBet, domain.ReasonBelowMinimumRaise)
	}
	return nil
}

// ValidateRaise checks a raise to a round total of raiseTo.
func (c BettingContext) ValidateRaise(raiseTo uint32) error {
	if c.CurrentBet == 0 {
		return domain.NewIllegalAction(domain.ActionRaise, domain.ReasonNoBetToCall)
	}
	if raiseTo <= c.CurrentBet {
		return domain.NewIllegalAction(domain.ActionRaise, domain.ReasonBelowMinimumRaise)
	}
	if raiseTo <= c.PlayerCurrentBet {
		return domain.NewIllegalAction(domain.ActionRaise, domain.ReasonInvalidAmount)
	}
	commit := raiseTo - c.PlayerCurrentBet
	if commit > c.PlayerChips {
		return domain.NewIllegalAction(domain.ActionRaise, domain.ReasonInsufficientChips)
	}
	if raiseTo < c.CurrentBet+c.MinRaise && commit != c.PlayerChips {
		return domain.NewIllegalAction(domain.ActionRaise, domain.ReasonBelowMinimumRaise)
	}
	return nil
}

// Validate checks action against the context. Amount follows Action's
// input semantics: bet size for bets, raise-to total for raises.
func (c BettingContext) Validate(action domain.Action) error {
	switch action.Type {
	case domain.ActionFold:
		return nil
	case domain.ActionCheck:
		if !c.CanCheck() {
			return domain.NewIllegalAction(action.Type, domain.ReasonCannotCheck)
		}
		return nil
	case domain.ActionCall:
		if c.toCall() == 0 {
			return domain.NewIllegalAction(action.Type, domain.ReasonNoBetToCall)
		}
		if c.PlayerChips == 0 {
			return domain.NewIllegalAction(action.Type, domain.ReasonInsufficientChips)
		}
		return nil
	case domain.ActionBet:
		return c.ValidateBet(action.Amount)
	case domain.ActionRaise:
		return c.ValidateRaise(action.Amount)
	case domain.ActionAllIn:
		if !c.CanAllIn() {
			return domain.NewIllegalAction(action.Type, domain.ReasonInsufficientChips)
		}
		return nil
	default:
		return domain.NewIllegalAction(action.Type, domain.ReasonInvalidAmount)
	}
}

// Commitment returns the chips action moves from the player's stack.
// It assumes the action already passed Validate.
func (c BettingContext) Commitment(action domain.Action) uint32 {
	switch action.Type {
	case domain.ActionCall:
		return c.CallAmount()
	case domain.ActionBet:
		return action.Amount
	case domain.ActionRaise:
		return action.Amount - c.PlayerCurrentBet
	case domain.ActionAllIn:
		return c.PlayerChips
	default:
		return 0
	}
}

func (c BettingContext) LegalActions() ValidActions {
	out := ValidActions{Actions: []domain.ActionType{domain.ActionFold}}
	if c.CanCheck() {
		out.Actions = append(out.Actions, domain.ActionCheck)
	}
	if c.CanCall() {
		out.Actions = append(out.Actions, domain.ActionCall)
		out.CallAmount = c.CallAmount()
	}

	maxTo := c.PlayerCurrentBet + c.PlayerChips
	if c.CurrentBet == 0 {
		if c.PlayerChips > 0 {
			out.Actions = append(out.Actions, domain.ActionBet)
			out.MinBet = min(c.MinRaise, c.PlayerChips)
			out.MaxRaiseTo = maxTo
		}
	} else if maxTo > c.CurrentBet {
		out.Actions = append(out.Actions, domain.ActionRaise)
		out.MinRaiseTo = min(c.CurrentBet+c.MinRaise, maxTo)
		out.MaxRaiseTo = maxTo
	}

	if c.CanAllIn() {
		out.Actions = append(out.Actions, domain.ActionAllIn)
	}
	return out
}

// NextMinRaise returns the minimum raise increment after the round's high bet
// moves from prevBet to newBet. An all-in short of a full raise leaves it as is.
func NextMinRaise(prevBet uint32, newBet uint32, minRaise uint32) uint32 {
	if newBet <= prevBet {
		return minRaise
	}
	increment := newBet - prevBet
	if increment >= minRaise {
		return increment
	}
	return minRaise
}
