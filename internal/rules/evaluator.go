package rules

import (
	"fmt"
	"sort"

	"github.com/imaddar/holdem-engine/internal/domain"
)

type HandCategory uint8

const (
	HandCategoryHighCard HandCategory = iota + 1
	HandCategoryOnePair
	HandCategoryTwoPair
	HandCategoryThreeOfAKind
	HandCategoryStraight
	HandCategoryFlush
	HandCategoryFullHouse
	HandCategoryFourOfAKind
	HandCategoryStraightFlush
	HandCategoryRoyalFlush
)

func (c HandCategory) String() string {
	switch c {
	case HandCategoryHighCard:
		return "high card"
	case HandCategoryOnePair:
		return "one pair"
	case HandCategoryTwoPair:
		return "two pair"
	case HandCategoryThreeOfAKind:
		return "three of a kind"
	case HandCategoryStraight:
		return "straight"
	case HandCategoryFlush:
		return "flush"
	case HandCategoryFullHouse:
		return "full house"
	case HandCategoryFourOfAKind:
		return "four of a kind"
	case HandCategoryStraightFlush:
		return "straight flush"
	case HandCategoryRoyalFlush:
		return "royal flush"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// HandResult is the best five-card hand found in a set of cards.
// Value orders hands totally: a larger Value wins and equal Values tie.
type HandResult struct {
	Category HandCategory
	Value    uint32
	Kickers  []domain.Rank
	BestFive []domain.Card
}

type Outcome int

const (
	BWins Outcome = -1
	Tie   Outcome = 0
	AWins Outcome = 1
)

type PlayerHand struct {
	PlayerID string
	Cards    []domain.Card
}

// Evaluate finds the best five-card hand among 5 to 7 cards.
func Evaluate(cards []domain.Card) (HandResult, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return HandResult{}, fmt.Errorf("evaluate %d cards: %w", len(cards), domain.ErrInvalidCardCount)
	}
	seen := make(map[domain.Card]struct{}, len(cards))
	for _, card := range cards {
		if _, ok := seen[card]; ok {
			return HandResult{}, fmt.Errorf("evaluate %s: %w", card, domain.ErrDuplicateCard)
		}
		seen[card] = struct{}{}
	}

	var best HandResult
	for _, c := range combinations(len(cards), 5) {
		candidate := evaluateFiveCards([]domain.Card{cards[c[0]], cards[c[1]], cards[c[2]], cards[c[3]], cards[c[4]]})
		if candidate.Value > best.Value {
			best = candidate
		}
	}
	return best, nil
}

// EvaluateHand evaluates hole cards together with the board.
func EvaluateHand(hole []domain.Card, board []domain.Card) (HandResult, error) {
	all := make([]domain.Card, 0, len(hole)+len(board))
	all = append(all, hole...)
	all = append(all, board...)
	return Evaluate(all)
}

func Compare(a HandResult, b HandResult) Outcome {
	switch {
	case a.Value > b.Value:
		return AWins
	case a.Value < b.Value:
		return BWins
	default:
		return Tie
	}
}

// FindWinners returns every player whose hand has the maximal value, in input order.
func FindWinners(hands []PlayerHand) ([]string, error) {
	if len(hands) == 0 {
		return nil, nil
	}
	values := make([]uint32, len(hands))
	var best uint32
	for i, hand := range hands {
		result, err := Evaluate(hand.Cards)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", hand.PlayerID, err)
		}
		values[i] = result.Value
		if result.Value > best {
			best = result.Value
		}
	}

	winners := make([]string, 0, 1)
	for i, hand := range hands {
		if values[i] == best {
			winners = append(winners, hand.PlayerID)
		}
	}
	return winners, nil
}

func evaluateFiveCards(cards []domain.Card) HandResult {
	ranks := make([]domain.Rank, 0, 5)
	rankCounts := map[domain.Rank]int{}
	suits := map[domain.Suit]int{}
	for _, card := range cards {
		ranks = append(ranks, card.Rank)
		rankCounts[card.Rank]++
		suits[card.Suit]++
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] > ranks[j] })

	isFlush := len(suits) == 1
	straightHigh, isStraight := straightHighRank(ranks)
	groups := rankGroups(rankCounts)

	var category HandCategory
	var kickers []domain.Rank
	switch {
	case isFlush && isStraight && straightHigh == domain.RankAce:
		category, kickers = HandCategoryRoyalFlush, []domain.Rank{straightHigh}
	case isFlush && isStraight:
		category, kickers = HandCategoryStraightFlush, []domain.Rank{straightHigh}
	case groups[0].count == 4:
		category, kickers = HandCategoryFourOfAKind, []domain.Rank{groups[0].rank, groups[1].rank}
	case groups[0].count == 3 && groups[1].count == 2:
		category, kickers = HandCategoryFullHouse, []domain.Rank{groups[0].rank, groups[1].rank}
	case isFlush:
		category, kickers = HandCategoryFlush, ranks
	case isStraight:
		category, kickers = HandCategoryStraight, []domain.Rank{straightHigh}
	case groups[0].count == 3:
		category, kickers = HandCategoryThreeOfAKind, groupRanks(groups)
	case groups[0].count == 2 && groups[1].count == 2:
		category, kickers = HandCategoryTwoPair, groupRanks(groups)
	case groups[0].count == 2:
		category, kickers = HandCategoryOnePair, groupRanks(groups)
	default:
		category, kickers = HandCategoryHighCard, ranks
	}

	return HandResult{
		Category: category,
		Value:    packValue(category, kickers),
		Kickers:  append([]domain.Rank(nil), kickers...),
		BestFive: orderBestFive(cards, rankCounts, isStraight && straightHigh == domain.RankFive),
	}
}

// packValue stores the category in bits 20+ and up to five kicker ranks in
// descending significance, four bits each.
func packValue(category HandCategory, kickers []domain.Rank) uint32 {
	value := uint32(category) << 20
	for i := 0; i < 5 && i < len(kickers); i++ {
		value |= uint32(kickers[i]) << (16 - 4*i)
	}
	return value
}

type rankGroup struct {
	rank  domain.Rank
	count int
}

func rankGroups(rankCounts map[domain.Rank]int) []rankGroup {
	groups := make([]rankGroup, 0, len(rankCounts))
	for rank, count := range rankCounts {
		groups = append(groups, rankGroup{rank: rank, count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count == groups[j].count {
			return groups[i].rank > groups[j].rank
		}
		return groups[i].count > groups[j].count
	})
	return groups
}

func groupRanks(groups []rankGroup) []domain.Rank {
	out := make([]domain.Rank, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.rank)
	}
	return out
}

func straightHighRank(ranks []domain.Rank) (domain.Rank, bool) {
	unique := make([]domain.Rank, 0, len(ranks))
	seen := map[domain.Rank]struct{}{}
	for _, rank := range ranks {
		if _, ok := seen[rank]; ok {
			continue
		}
		seen[rank] = struct{}{}
		unique = append(unique, rank)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] > unique[j] })
	if len(unique) != 5 {
		return 0, false
	}

	// Wheel straight: A-2-3-4-5.
	if unique[0] == domain.RankAce && unique[1] == domain.RankFive && unique[4] == domain.RankTwo {
		return domain.RankFive, true
	}

	for i := 1; i < 5; i++ {
		if unique[i-1]-1 != unique[i] {
			return 0, false
		}
	}
	return unique[0], true
}

// orderBestFive sorts cards by group size then rank, with the ace last in a wheel.
func orderBestFive(cards []domain.Card, rankCounts map[domain.Rank]int, wheel bool) []domain.Card {
	out := append([]domain.Card(nil), cards...)
	weight := func(c domain.Card) int {
		if wheel && c.Rank == domain.RankAce {
			return 1
		}
		return int(c.Rank)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := rankCounts[out[i].Rank], rankCounts[out[j].Rank]
		if ci != cj {
			return ci > cj
		}
		if weight(out[i]) != weight(out[j]) {
			return weight(out[i]) > weight(out[j])
		}
		return out[i].Suit < out[j].Suit
	})
	return out
}

func combinations(n int, choose int) [][]int {
	out := make([][]int, 0)
	combo := make([]int, choose)
	var walk func(start int, depth int)
	walk = func(start int, depth int) {
		if depth == choose {
			copied := append([]int(nil), combo...)
			out = append(out, copied)
			return
		}
		for i := start; i <= n-(choose-depth); i++ {
			combo[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return out
}
