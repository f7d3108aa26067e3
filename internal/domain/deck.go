package domain

// Deck tracks every card of a single hand. Cards are dealt from the end of
// Remaining; Dealt and Burned keep what has left it so the 52-card total
// stays auditable.
type Deck struct {
	Remaining []Card `json:"remaining"`
	Dealt     []Card `json:"dealt"`
	Burned    []Card `json:"burned"`
}

// Standard52Deck returns all 52 cards in suit-major order.
func Standard52Deck() []Card {
	cards := make([]Card, 0, 52)
	for _, suit := range Suits {
		for rank := RankTwo; rank <= RankAce; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}

func NewDeck() Deck {
	return Deck{Remaining: Standard52Deck()}
}

func (d Deck) Len() int {
	return len(d.Remaining)
}

// Deal removes n cards from the top of the deck and returns them.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 || n > len(d.Remaining) {
		return nil, ErrEmptyDeck
	}
	cut := len(d.Remaining) - n
	out := make([]Card, 0, n)
	for i := len(d.Remaining) - 1; i >= cut; i-- {
		out = append(out, d.Remaining[i])
	}
	d.Remaining = d.Remaining[:cut]
	d.Dealt = append(d.Dealt, out...)
	return out, nil
}

func (d *Deck) DealOne() (Card, error) {
	cards, err := d.Deal(1)
	if err != nil {
		return Card{}, err
	}
	return cards[0], nil
}

// Burn discards the top card face down.
func (d *Deck) Burn() error {
	if len(d.Remaining) == 0 {
		return ErrEmptyDeck
	}
	last := len(d.Remaining) - 1
	d.Burned = append(d.Burned, d.Remaining[last])
	d.Remaining = d.Remaining[:last]
	return nil
}

func (d Deck) Clone() Deck {
	return Deck{
		Remaining: append([]Card(nil), d.Remaining...),
		Dealt:     append([]Card(nil), d.Dealt...),
		Burned:    append([]Card(nil), d.Burned...),
	}
}
