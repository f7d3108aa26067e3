package rules

import (
	"fmt"
	"sort"

	"github.com/thoas/go-funk"

	"github.com/imaddar/holdem-engine/internal/domain"
)

// Contribution is one player's total commitment to the hand.
type Contribution struct {
	PlayerID string
	TotalBet uint32
	Folded   bool
}

func ContributionsFromPlayers(players []domain.Player) []Contribution {
	out := make([]Contribution, 0, len(players))
	for _, p := range players {
		if p.TotalBet == 0 && p.Status == domain.PlayerStatusEliminated {
			continue
		}
		out = append(out, Contribution{
			PlayerID: p.ID,
			TotalBet: p.TotalBet,
			Folded:   p.Status == domain.PlayerStatusFolded,
		})
	}
	return out
}

// CalculatePots splits contributions into a main pot and side pots, one tier
// per distinct contribution level. Folded chips stay in the tiers they reach
// but folded players are never eligible. A tier nobody can win is merged into
// the tier below.
func CalculatePots(contributions []Contribution) domain.Pot {
	levels := contributionLevels(contributions)
	tiers := make([]domain.SidePot, 0, len(levels))

	prev := uint32(0)
	for _, level := range levels {
		contributors := 0
		eligible := make([]string, 0, len(contributions))
		for _, c := range contributions {
			if c.TotalBet < level {
				continue
			}
			contributors++
			if !c.Folded {
				eligible = append(eligible, c.PlayerID)
			}
		}
		amount := (level - prev) * uint32(contributors)
		prev = level
		if amount == 0 {
			continue
		}

		if len(eligible) == 0 && len(tiers) > 0 {
			tiers[len(tiers)-1].Amount += amount
			continue
		}
		tiers = append(tiers, domain.SidePot{Amount: amount, EligiblePlayerIDs: eligible})
	}

	if len(tiers) == 0 {
		return domain.Pot{}
	}
	pot := domain.Pot{MainPot: tiers[0].Amount, MainEligibleIDs: tiers[0].EligiblePlayerIDs}
	if len(tiers) > 1 {
		pot.SidePots = tiers[1:]
	}
	return pot
}

// Distribute pays every tier of pot to the winners eligible for it.
// buttonOrder lists player ids starting at the dealer and going clockwise;
// it decides who receives odd chips.
func Distribute(pot domain.Pot, winners []string, buttonOrder []string) (map[string]uint32, error) {
	payouts := make(map[string]uint32, len(winners))
	for i, tier := range pot.Tiers() {
		tierWinners := funk.IntersectString(tier.EligiblePlayerIDs, winners)
		share, err := DistributeTier(tier, tierWinners, buttonOrder)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", TierName(i), err)
		}
		for id, amount := range share {
			payouts[id] += amount
		}
	}

	var paid uint32
	for _, amount := range payouts {
		paid += amount
	}
	if paid != pot.Total() {
		return nil, fmt.Errorf("paid %d of %d: %w", paid, pot.Total(), domain.ErrPotMismatch)
	}
	return payouts, nil
}

// DistributeTier splits a single tier evenly among winners, all of whom must
// be eligible. The whole remainder goes to the winner closest to the dealer,
// at or clockwise from the button.
func DistributeTier(tier domain.SidePot, winners []string, buttonOrder []string) (map[string]uint32, error) {
	if tier.Amount == 0 {
		return map[string]uint32{}, nil
	}
	eligible := make([]string, 0, len(winners))
	for _, id := range winners {
		if funk.ContainsString(tier.EligiblePlayerIDs, id) && !funk.ContainsString(eligible, id) {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("tier of %d chips: %w", tier.Amount, domain.ErrNoEligibleWinner)
	}

	share := tier.Amount / uint32(len(eligible))
	odd := tier.Amount % uint32(len(eligible))
	out := make(map[string]uint32, len(eligible))
	for _, id := range eligible {
		out[id] = share
	}
	if odd > 0 {
		out[orderWinnersForOddChip(eligible, buttonOrder)[0]] += odd
	}
	return out, nil
}

// ButtonOrder lists player ids starting at the dealer seat and moving clockwise.
func ButtonOrder(players []domain.Player, dealerIndex int) []string {
	out := make([]string, 0, len(players))
	if len(players) == 0 {
		return out
	}
	if dealerIndex < 0 || dealerIndex >= len(players) {
		dealerIndex = 0
	}
	for i := 0; i < len(players); i++ {
		out = append(out, players[(dealerIndex+i)%len(players)].ID)
	}
	return out
}

func TierName(i int) string {
	if i == 0 {
		return "main_pot"
	}
	return fmt.Sprintf("side_pot_%d", i)
}

func contributionLevels(contributions []Contribution) []uint32 {
	seen := map[uint32]struct{}{}
	levels := make([]uint32, 0, len(contributions))
	for _, c := range contributions {
		if c.TotalBet == 0 {
			continue
		}
		if _, ok := seen[c.TotalBet]; ok {
			continue
		}
		seen[c.TotalBet] = struct{}{}
		levels = append(levels, c.TotalBet)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

func orderWinnersForOddChip(winners []string, buttonOrder []string) []string {
	if len(winners) <= 1 {
		return winners
	}
	ordered := make([]string, 0, len(winners))
	for _, id := range buttonOrder {
		if funk.ContainsString(winners, id) {
			ordered = append(ordered, id)
		}
	}
	// winners missing from buttonOrder keep their input order at the end
	for _, id := range winners {
		if !funk.ContainsString(ordered, id) {
			ordered = append(ordered, id)
		}
	}
	return ordered
}
