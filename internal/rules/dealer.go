package rules

import (
	cryptorand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/imaddar/holdem-engine/internal/domain"
)

type Shuffler interface {
	Shuffle([]domain.Card) error
}

type cryptoShuffler struct{}

type seededShuffler struct {
	rng *rand.Rand
}

func NewCryptoShuffler() Shuffler {
	return cryptoShuffler{}
}

func NewSeededShuffler(seed int64) Shuffler {
	return seededShuffler{rng: rand.New(rand.NewSource(seed))}
}

func (s cryptoShuffler) Shuffle(cards []domain.Card) error {
	for i := len(cards) - 1; i > 0; i-- {
		n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("crypto shuffle failed: %w", err)
		}
		j := int(n.Int64())
		cards[i], cards[j] = cards[j], cards[i]
	}
	return nil
}

func (s seededShuffler) Shuffle(cards []domain.Card) error {
	for i := len(cards) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return nil
}

// Shuffle permutes the undealt cards of deck in place.
func Shuffle(deck *domain.Deck, shuffler Shuffler) error {
	if shuffler == nil {
		shuffler = NewCryptoShuffler()
	}
	return shuffler.Shuffle(deck.Remaining)
}

// NewShuffledDeck returns a fresh 52-card deck permuted by shuffler.
func NewShuffledDeck(shuffler Shuffler) (domain.Deck, error) {
	deck := domain.NewDeck()
	if err := Shuffle(&deck, shuffler); err != nil {
		return domain.Deck{}, err
	}
	return deck, nil
}

// DealHoleCards deals two cards one at a time to every player in order,
// which callers build starting left of the dealer.
func DealHoleCards(deck *domain.Deck, players []domain.Player, order []int) error {
	for i := range order {
		players[order[i]].HoleCards = make([]domain.Card, 0, domain.HoleCardsPerPlayer)
	}
	for round := 0; round < domain.HoleCardsPerPlayer; round++ {
		for _, idx := range order {
			card, err := deck.DealOne()
			if err != nil {
				return fmt.Errorf("deal hole cards: %w", err)
			}
			players[idx].HoleCards = append(players[idx].HoleCards, card)
		}
	}
	return nil
}

// DealStreet burns one card and deals the board cards that follow phase:
// three after preflop, one after the flop and one after the turn.
func DealStreet(deck *domain.Deck, phase domain.Phase) ([]domain.Card, error) {
	draw := 0
	switch phase {
	case domain.PhasePreflop:
		draw = 3
	case domain.PhaseFlop, domain.PhaseTurn:
		draw = 1
	default:
		return nil, fmt.Errorf("cannot deal next street from %s: %w", phase, domain.ErrInvalidTransition)
	}

	if err := deck.Burn(); err != nil {
		return nil, fmt.Errorf("burn before %s: %w", phase, err)
	}
	cards, err := deck.Deal(draw)
	if err != nil {
		return nil, fmt.Errorf("deal after %s: %w", phase, err)
	}
	return cards, nil
}
