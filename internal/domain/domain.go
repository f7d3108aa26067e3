package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinPlayers         = 2
	MaxPlayers         = 10
	DefaultNumPlayers  = 6
	HoleCardsPerPlayer = 2
	BoardSize          = 5
)

const (
	DefaultStartingChips uint32 = 1_000
	DefaultSmallBlind    uint32 = 5
	DefaultBigBlind      uint32 = 10
)

type Suit uint8

const (
	SuitHearts Suit = iota
	SuitDiamonds
	SuitClubs
	SuitSpades
)

// Suits lists every suit in deck order.
var Suits = [...]Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

func (s Suit) String() string {
	switch s {
	case SuitHearts:
		return "h"
	case SuitDiamonds:
		return "d"
	case SuitClubs:
		return "c"
	case SuitSpades:
		return "s"
	default:
		return "?"
	}
}

type Rank uint8

const (
	RankTwo Rank = iota + 2
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
	RankAce
)

func NewRank(value uint8) (Rank, error) {
	if value < uint8(RankTwo) || value > uint8(RankAce) {
		return 0, fmt.Errorf("rank must be in range 2..=14, got %d", value)
	}
	return Rank(value), nil
}

func (r Rank) String() string {
	switch r {
	case RankAce:
		return "A"
	case RankKing:
		return "K"
	case RankQueen:
		return "Q"
	case RankJack:
		return "J"
	case RankTen:
		return "T"
	default:
		if r >= RankTwo && r <= RankNine {
			return string(rune('0' + r))
		}
		return "?"
	}
}

type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// ParseCard reads the two-character notation used by String, e.g. "Ah" or "Td".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}

	var rank Rank
	switch r := strings.ToUpper(s[:1]); r {
	case "A":
		rank = RankAce
	case "K":
		rank = RankKing
	case "Q":
		rank = RankQueen
	case "J":
		rank = RankJack
	case "T":
		rank = RankTen
	default:
		if r[0] < '2' || r[0] > '9' {
			return Card{}, fmt.Errorf("invalid rank in card %q", s)
		}
		rank = Rank(r[0] - '0')
	}

	var suit Suit
	switch strings.ToLower(s[1:]) {
	case "h":
		suit = SuitHearts
	case "d":
		suit = SuitDiamonds
	case "c":
		suit = SuitClubs
	case "s":
		suit = SuitSpades
	default:
		return Card{}, fmt.Errorf("invalid suit in card %q", s)
	}

	return NewCard(rank, suit), nil
}

// MustParseCards parses a space-separated card list and panics on bad input.
// Intended for tests and fixtures.
func MustParseCards(s string) []Card {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		card, err := ParseCard(f)
		if err != nil {
			panic(err)
		}
		cards = append(cards, card)
	}
	return cards
}

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
	PhaseComplete Phase = "complete"
)

// BettingPhases are the phases in which ApplyAction accepts actions.
var BettingPhases = []Phase{PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver}

type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionBet   ActionType = "bet"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "allin"
)

// Action is a single decision submitted for the seat whose turn it is.
// Amount is the bet size for ActionBet and the raise-to total for ActionRaise;
// other action types ignore it. Entries in GameState.ActionHistory carry the
// chips actually committed instead.
type Action struct {
	Type      ActionType `json:"type"`
	PlayerID  string     `json:"player_id"`
	Amount    uint32     `json:"amount,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewAction(kind ActionType, playerID string, amount uint32) (Action, error) {
	switch kind {
	case ActionBet, ActionRaise:
		if amount == 0 {
			return Action{}, fmt.Errorf("action amount is required for %s", kind)
		}
	case ActionFold, ActionCheck, ActionCall, ActionAllIn:
		if amount != 0 {
			return Action{}, fmt.Errorf("action amount is not allowed for %s", kind)
		}
	default:
		return Action{}, fmt.Errorf("unknown action type %q", kind)
	}
	if playerID == "" {
		return Action{}, fmt.Errorf("action requires a player id")
	}
	return Action{Type: kind, PlayerID: playerID, Amount: amount}, nil
}

type PlayerStatus string

const (
	PlayerStatusActive     PlayerStatus = "active"
	PlayerStatusFolded     PlayerStatus = "folded"
	PlayerStatusAllIn      PlayerStatus = "all_in"
	PlayerStatusEliminated PlayerStatus = "eliminated"
)

type Player struct {
	ID           string       `json:"id"`
	Chips        uint32       `json:"chips"`
	HoleCards    []Card       `json:"hole_cards,omitempty"`
	CurrentBet   uint32       `json:"current_bet"`
	TotalBet     uint32       `json:"total_bet"`
	Status       PlayerStatus `json:"status"`
	SeatIndex    int          `json:"seat_index"`
	IsDealer     bool         `json:"is_dealer"`
	IsSmallBlind bool         `json:"is_small_blind"`
	IsBigBlind   bool         `json:"is_big_blind"`
	HasActed     bool         `json:"has_acted"`
}

func NewPlayer(id string, seatIndex int, chips uint32) Player {
	return Player{
		ID:        id,
		Chips:     chips,
		SeatIndex: seatIndex,
		Status:    PlayerStatusActive,
	}
}

// CanAct reports whether the player still makes betting decisions this hand.
func (p Player) CanAct() bool {
	return p.Status == PlayerStatusActive
}

// InHand reports whether the player can still win chips at showdown.
func (p Player) InHand() bool {
	return p.Status == PlayerStatusActive || p.Status == PlayerStatusAllIn
}

type GameConfig struct {
	NumPlayers    int    `json:"num_players"`
	StartingChips uint32 `json:"starting_chips"`
	SmallBlind    uint32 `json:"small_blind"`
	BigBlind      uint32 `json:"big_blind"`
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		NumPlayers:    DefaultNumPlayers,
		StartingChips: DefaultStartingChips,
		SmallBlind:    DefaultSmallBlind,
		BigBlind:      DefaultBigBlind,
	}
}

func (c GameConfig) Validate() error {
	if c.NumPlayers < MinPlayers || c.NumPlayers > MaxPlayers {
		return fmt.Errorf("num_players must be in range %d..=%d, got %d", MinPlayers, MaxPlayers, c.NumPlayers)
	}
	if c.StartingChips == 0 {
		return ErrInvalidStartingChips
	}
	if c.SmallBlind == 0 || c.BigBlind < c.SmallBlind {
		return ErrInvalidBlindStructure
	}
	return nil
}

type SidePot struct {
	Amount            uint32   `json:"amount"`
	EligiblePlayerIDs []string `json:"eligible_player_ids"`
}

// Pot is the main pot plus side pots in ascending contribution order.
type Pot struct {
	MainPot         uint32    `json:"main_pot"`
	MainEligibleIDs []string  `json:"main_eligible_ids"`
	SidePots        []SidePot `json:"side_pots,omitempty"`
}

func (p Pot) Total() uint32 {
	total := p.MainPot
	for _, side := range p.SidePots {
		total += side.Amount
	}
	return total
}

// Tiers returns the main pot followed by every side pot.
func (p Pot) Tiers() []SidePot {
	tiers := make([]SidePot, 0, len(p.SidePots)+1)
	if p.MainPot > 0 || len(p.MainEligibleIDs) > 0 {
		tiers = append(tiers, SidePot{Amount: p.MainPot, EligiblePlayerIDs: p.MainEligibleIDs})
	}
	return append(tiers, p.SidePots...)
}

type PotAward struct {
	Amount    uint32   `json:"amount"`
	PlayerIDs []string `json:"player_ids"`
	Reason    string   `json:"reason"`
}

type ShowdownHand struct {
	PlayerID string `json:"player_id"`
	Category string `json:"category"`
	Value    uint32 `json:"value"`
	BestFive []Card `json:"best_five"`
	Won      uint32 `json:"won"`
}

type GameState struct {
	HandID             string         `json:"hand_id"`
	HandNumber         uint64         `json:"hand_number"`
	Phase              Phase          `json:"phase"`
	Players            []Player       `json:"players"`
	CommunityCards     []Card         `json:"community_cards"`
	CurrentBet         uint32         `json:"current_bet"`
	MinRaise           uint32         `json:"min_raise"`
	CurrentPlayerIndex int            `json:"current_player_index"`
	DealerIndex        int            `json:"dealer_index"`
	SmallBlindIndex    int            `json:"small_blind_index"`
	BigBlindIndex      int            `json:"big_blind_index"`
	SmallBlind         uint32         `json:"small_blind"`
	BigBlind           uint32         `json:"big_blind"`
	ActionHistory      []Action       `json:"action_history"`
	Deck               Deck           `json:"-"`
	Pot                Pot            `json:"pot"`
	Awards             []PotAward     `json:"awards,omitempty"`
	Showdown           []ShowdownHand `json:"showdown,omitempty"`
	GameOver           bool           `json:"game_over"`
}

// PlayerIndex returns the seat index of the player with the given id, or -1.
func (s GameState) PlayerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// PotTotal is the sum of every contribution made this hand.
func (s GameState) PotTotal() uint32 {
	var total uint32
	for _, p := range s.Players {
		total += p.TotalBet
	}
	return total
}

// ChipTotal counts chips behind plus chips committed; it is constant across a hand.
func (s GameState) ChipTotal() uint64 {
	var total uint64
	for _, p := range s.Players {
		total += uint64(p.Chips) + uint64(p.TotalBet)
	}
	return total
}

// Clone returns a deep copy so callers never share slices with a previous state.
func (s GameState) Clone() GameState {
	cloned := s
	cloned.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.HoleCards = append([]Card(nil), p.HoleCards...)
		cloned.Players[i] = p
	}
	cloned.CommunityCards = append([]Card(nil), s.CommunityCards...)
	cloned.ActionHistory = append([]Action(nil), s.ActionHistory...)
	cloned.Deck = s.Deck.Clone()
	cloned.Pot = clonePot(s.Pot)
	if s.Awards != nil {
		cloned.Awards = make([]PotAward, 0, len(s.Awards))
		for _, award := range s.Awards {
			award.PlayerIDs = append([]string(nil), award.PlayerIDs...)
			cloned.Awards = append(cloned.Awards, award)
		}
	}
	if s.Showdown != nil {
		cloned.Showdown = make([]ShowdownHand, 0, len(s.Showdown))
		for _, hand := range s.Showdown {
			hand.BestFive = append([]Card(nil), hand.BestFive...)
			cloned.Showdown = append(cloned.Showdown, hand)
		}
	}
	return cloned
}

func clonePot(p Pot) Pot {
	out := Pot{
		MainPot:         p.MainPot,
		MainEligibleIDs: append([]string(nil), p.MainEligibleIDs...),
	}
	if len(p.SidePots) > 0 {
		out.SidePots = make([]SidePot, 0, len(p.SidePots))
		for _, side := range p.SidePots {
			out.SidePots = append(out.SidePots, SidePot{
				Amount:            side.Amount,
				EligiblePlayerIDs: append([]string(nil), side.EligiblePlayerIDs...),
			})
		}
	}
	return out
}
