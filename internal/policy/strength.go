package policy

import (
	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
)

// HandStrength bets its strong hands, calls with medium ones when the price
// is right and gives up weak hands facing a bet.
type HandStrength struct {
	// StrongAt and MediumAt are thresholds on a 0..100 strength score.
	StrongAt int
	MediumAt int
}

func NewHandStrength() HandStrength {
	return HandStrength{StrongAt: 70, MediumAt: 40}
}

func (h HandStrength) Decide(state domain.GameState, playerID string) (domain.Action, error) {
	idx, valid, err := legalFor(state, playerID)
	if err != nil {
		return domain.Action{}, err
	}
	p := state.Players[idx]
	score := Strength(p.HoleCards, state.CommunityCards)

	switch {
	case score >= h.StrongAt:
		if has(valid, domain.ActionBet) {
			return action(domain.ActionBet, playerID, valid.MinBet), nil
		}
		if has(valid, domain.ActionRaise) {
			return action(domain.ActionRaise, playerID, valid.MinRaiseTo), nil
		}
	case score >= h.MediumAt:
		if has(valid, domain.ActionCall) && potOdds(state, valid.CallAmount) <= 0.34 {
			return action(domain.ActionCall, playerID, 0), nil
		}
	}

	if has(valid, domain.ActionCheck) {
		return action(domain.ActionCheck, playerID, 0), nil
	}
	if score >= h.StrongAt && has(valid, domain.ActionCall) {
		return action(domain.ActionCall, playerID, 0), nil
	}
	return action(domain.ActionFold, playerID, 0), nil
}

// Strength scores a holding from 0 to 100. Before the flop it rates the two
// hole cards; afterwards it uses the evaluated hand category.
func Strength(hole []domain.Card, board []domain.Card) int {
	if len(hole) != 2 {
		return 0
	}
	if len(board) < 3 {
		return preflopStrength(hole[0], hole[1])
	}
	result, err := rules.EvaluateHand(hole, board)
	if err != nil {
		return 0
	}
	switch result.Category {
	case rules.HandCategoryHighCard:
		return 10 + int(result.Kickers[0])
	case rules.HandCategoryOnePair:
		return 35 + int(result.Kickers[0])
	case rules.HandCategoryTwoPair:
		return 65
	case rules.HandCategoryThreeOfAKind:
		return 75
	default:
		return 90
	}
}

func preflopStrength(a domain.Card, b domain.Card) int {
	high, low := a.Rank, b.Rank
	if low > high {
		high, low = low, high
	}
	score := int(high) * 2
	if high == low {
		score = 50 + int(high)*3
	}
	if a.Suit == b.Suit {
		score += 6
	}
	if gap := int(high - low); gap > 0 && gap <= 2 {
		score += 4
	}
	if score > 100 {
		return 100
	}
	return score
}

func potOdds(state domain.GameState, callAmount uint32) float64 {
	if callAmount == 0 {
		return 0
	}
	return float64(callAmount) / float64(state.PotTotal()+callAmount)
}
