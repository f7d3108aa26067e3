package statemachine

import (
	"fmt"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
)

// ResolveShowdown evaluates every hand still in and pays each pot tier to
// the best hand eligible for it.
func (e *Engine) ResolveShowdown(state domain.GameState) (domain.GameState, error) {
	if state.Phase != domain.PhaseShowdown {
		return domain.GameState{}, fmt.Errorf("showdown from %s: %w", state.Phase, domain.ErrInvalidTransition)
	}
	if len(state.CommunityCards) != domain.BoardSize {
		return domain.GameState{}, e.invariant("showdown", fmt.Errorf("board has %d cards: %w", len(state.CommunityCards), domain.ErrInvalidCardCount))
	}

	next := state.Clone()
	chipsBefore := next.ChipTotal()

	hands := make(map[string]rules.PlayerHand, len(next.Players))
	showdown := make([]domain.ShowdownHand, 0, len(next.Players))
	for _, p := range next.Players {
		if !p.InHand() {
			continue
		}
		cards := append(append([]domain.Card(nil), p.HoleCards...), next.CommunityCards...)
		result, err := rules.Evaluate(cards)
		if err != nil {
			return domain.GameState{}, e.invariant("showdown", fmt.Errorf("player %s: %w", p.ID, err))
		}
		hands[p.ID] = rules.PlayerHand{PlayerID: p.ID, Cards: cards}
		showdown = append(showdown, domain.ShowdownHand{
			PlayerID: p.ID,
			Category: result.Category.String(),
			Value:    result.Value,
			BestFive: result.BestFive,
		})
	}

	next.Pot = rules.CalculatePots(rules.ContributionsFromPlayers(next.Players))
	buttonOrder := rules.ButtonOrder(next.Players, next.DealerIndex)

	won := make(map[string]uint32, len(hands))
	awards := make([]domain.PotAward, 0, len(next.Pot.SidePots)+1)
	var paid uint32
	for i, tier := range next.Pot.Tiers() {
		contenders := make([]rules.PlayerHand, 0, len(tier.EligiblePlayerIDs))
		for _, id := range tier.EligiblePlayerIDs {
			if hand, ok := hands[id]; ok {
				contenders = append(contenders, hand)
			}
		}
		winners, err := rules.FindWinners(contenders)
		if err != nil {
			return domain.GameState{}, e.invariant("showdown", err)
		}
		payouts, err := rules.DistributeTier(tier, winners, buttonOrder)
		if err != nil {
			return domain.GameState{}, e.invariant("showdown", fmt.Errorf("%s: %w", rules.TierName(i), err))
		}
		for id, amount := range payouts {
			won[id] += amount
			paid += amount
		}
		awards = append(awards, domain.PotAward{
			Amount:    tier.Amount,
			PlayerIDs: winners,
			Reason:    rules.TierName(i),
		})
	}
	if paid != next.Pot.Total() || paid != next.PotTotal() {
		return domain.GameState{}, e.invariant("showdown", fmt.Errorf("paid %d of %d: %w", paid, next.PotTotal(), domain.ErrPotMismatch))
	}

	for i := range next.Players {
		next.Players[i].Chips += won[next.Players[i].ID]
	}
	for i := range showdown {
		showdown[i].Won = won[showdown[i].PlayerID]
	}
	clearBets(&next)

	if after := next.ChipTotal(); after != chipsBefore {
		return domain.GameState{}, e.invariant("showdown", fmt.Errorf("%d chips before, %d after: %w", chipsBefore, after, domain.ErrChipsNotConserved))
	}

	next.Awards = awards
	next.Showdown = showdown
	next.Phase = domain.PhaseComplete
	next.CurrentPlayerIndex = rules.NoPlayer

	e.logger.Debug("showdown resolved", "hand_id", next.HandID, "pots", len(awards), "paid", paid)
	return next, nil
}
