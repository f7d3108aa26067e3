package statemachine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
)

// Engine applies the rules of one table. Every method takes a state and
// returns a new one; the input state is never modified.
type Engine struct {
	cfg      domain.GameConfig
	shuffler rules.Shuffler
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Engine)

func WithShuffler(shuffler rules.Shuffler) Option {
	return func(e *Engine) {
		if shuffler != nil {
			e.shuffler = shuffler
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(cfg domain.GameConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		shuffler: rules.NewCryptoShuffler(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() domain.GameConfig {
	return e.cfg
}

// NewGame seats the given players clockwise with the configured starting stack.
func (e *Engine) NewGame(playerIDs []string) (domain.GameState, error) {
	if len(playerIDs) < domain.MinPlayers || len(playerIDs) > domain.MaxPlayers {
		return domain.GameState{}, fmt.Errorf("game needs %d..=%d players, got %d", domain.MinPlayers, domain.MaxPlayers, len(playerIDs))
	}
	seen := make(map[string]struct{}, len(playerIDs))
	players := make([]domain.Player, 0, len(playerIDs))
	for i, id := range playerIDs {
		if id == "" {
			return domain.GameState{}, domain.ErrEmptyPlayerID
		}
		if _, ok := seen[id]; ok {
			return domain.GameState{}, fmt.Errorf("%w: %s", domain.ErrDuplicatePlayer, id)
		}
		seen[id] = struct{}{}
		players = append(players, domain.NewPlayer(id, i, e.cfg.StartingChips))
	}

	return domain.GameState{
		Phase:              domain.PhaseWaiting,
		Players:            players,
		CurrentPlayerIndex: rules.NoPlayer,
		DealerIndex:        rules.NoPlayer,
		SmallBlindIndex:    rules.NoPlayer,
		BigBlindIndex:      rules.NoPlayer,
		SmallBlind:         e.cfg.SmallBlind,
		BigBlind:           e.cfg.BigBlind,
	}, nil
}

// StartHand shuffles, posts blinds, deals hole cards and hands the action
// to the first player. The dealer seat is used as is unless it is unset or
// busted; EndHand is what rotates it between hands.
func (e *Engine) StartHand(state domain.GameState) (domain.GameState, error) {
	if state.Phase != domain.PhaseWaiting {
		return domain.GameState{}, fmt.Errorf("start hand from %s: %w", state.Phase, domain.ErrInvalidTransition)
	}
	if state.GameOver {
		return domain.GameState{}, domain.ErrGameOver
	}

	next := state.Clone()
	for i := range next.Players {
		if next.Players[i].Chips == 0 {
			next.Players[i].Status = domain.PlayerStatusEliminated
		}
	}
	if rules.SeatedCount(next.Players) < domain.MinPlayers {
		return domain.GameState{}, domain.ErrGameOver
	}

	if next.DealerIndex < 0 || next.DealerIndex >= len(next.Players) ||
		next.Players[next.DealerIndex].Status == domain.PlayerStatusEliminated {
		next.DealerIndex = rules.NextDealer(next.Players, next.DealerIndex)
	}

	next.HandID = uuid.NewString()
	next.HandNumber++
	next.CommunityCards = make([]domain.Card, 0, domain.BoardSize)
	next.ActionHistory = nil
	next.Awards = nil
	next.Showdown = nil
	next.Pot = domain.Pot{}
	if next.SmallBlind == 0 || next.BigBlind == 0 {
		next.SmallBlind, next.BigBlind = e.cfg.SmallBlind, e.cfg.BigBlind
	}
	for i := range next.Players {
		p := &next.Players[i]
		if p.Status != domain.PlayerStatusEliminated {
			p.Status = domain.PlayerStatusActive
		}
		p.HoleCards = nil
		p.CurrentBet = 0
		p.TotalBet = 0
		p.HasActed = false
		p.IsDealer = i == next.DealerIndex
		p.IsSmallBlind = false
		p.IsBigBlind = false
	}

	deck, err := rules.NewShuffledDeck(e.shuffler)
	if err != nil {
		return domain.GameState{}, fmt.Errorf("shuffle: %w", err)
	}
	next.Deck = deck

	next.SmallBlindIndex, next.BigBlindIndex = rules.AssignBlinds(next.Players, next.DealerIndex)
	next.Players[next.SmallBlindIndex].IsSmallBlind = true
	next.Players[next.BigBlindIndex].IsBigBlind = true
	postBlind(&next, next.SmallBlindIndex, next.SmallBlind)
	postBlind(&next, next.BigBlindIndex, next.BigBlind)

	if err := rules.DealHoleCards(&next.Deck, next.Players, dealOrder(next.Players, next.DealerIndex)); err != nil {
		return domain.GameState{}, e.invariant("start_hand", err)
	}

	next.Phase = domain.PhasePreflop
	next.CurrentBet = next.BigBlind
	next.MinRaise = next.BigBlind
	next.CurrentPlayerIndex = rules.FirstToActPreflop(next.Players, next.BigBlindIndex)

	e.logger.Debug("hand started",
		"hand_id", next.HandID,
		"hand_number", next.HandNumber,
		"dealer", next.DealerIndex,
		"small_blind", next.SmallBlindIndex,
		"big_blind", next.BigBlindIndex,
	)

	if err := e.progress(&next); err != nil {
		return domain.GameState{}, err
	}
	return next, nil
}

// ApplyAction validates action for the player whose turn it is and returns
// the resulting state. Rejected actions leave state untouched.
func (e *Engine) ApplyAction(state domain.GameState, action domain.Action) (domain.GameState, error) {
	if !isBettingPhase(state.Phase) {
		return domain.GameState{}, fmt.Errorf("apply %s in %s: %w", action.Type, state.Phase, domain.ErrHandNotInProgress)
	}
	actingIdx := state.PlayerIndex(action.PlayerID)
	if actingIdx < 0 {
		return domain.GameState{}, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, action.PlayerID)
	}
	if actingIdx != state.CurrentPlayerIndex {
		return domain.GameState{}, fmt.Errorf("%w: %s", domain.ErrNotYourTurn, action.PlayerID)
	}

	ctx := rules.NewBettingContext(state, actingIdx)
	if err := ctx.Validate(action); err != nil {
		return domain.GameState{}, err
	}

	next := state.Clone()
	chipsBefore := next.ChipTotal()
	commit := ctx.Commitment(action)

	p := &next.Players[actingIdx]
	if action.Type == domain.ActionFold {
		p.Status = domain.PlayerStatusFolded
	} else {
		p.Chips -= commit
		p.CurrentBet += commit
		p.TotalBet += commit
		if p.Chips == 0 {
			p.Status = domain.PlayerStatusAllIn
		}
	}
	p.HasActed = true

	if p.CurrentBet > next.CurrentBet {
		next.MinRaise = rules.NextMinRaise(next.CurrentBet, p.CurrentBet, next.MinRaise)
		next.CurrentBet = p.CurrentBet
		for i := range next.Players {
			if i != actingIdx {
				next.Players[i].HasActed = false
			}
		}
	}

	recorded := action
	recorded.Amount = commit
	recorded.Timestamp = e.now()
	next.ActionHistory = append(next.ActionHistory, recorded)
	next.CurrentPlayerIndex = nextToAct(next, actingIdx)

	e.logger.Debug("action applied",
		"hand_id", next.HandID,
		"phase", next.Phase,
		"player", action.PlayerID,
		"action", action.Type,
		"committed", commit,
	)

	if err := e.progress(&next); err != nil {
		return domain.GameState{}, err
	}
	if after := next.ChipTotal(); after != chipsBefore {
		return domain.GameState{}, e.invariant("apply_action", fmt.Errorf("%d chips before, %d after: %w", chipsBefore, after, domain.ErrChipsNotConserved))
	}
	return next, nil
}

// EndHand retires busted players, moves the button and readies the table
// for the next StartHand.
func (e *Engine) EndHand(state domain.GameState) (domain.GameState, error) {
	if state.Phase != domain.PhaseComplete {
		return domain.GameState{}, fmt.Errorf("end hand from %s: %w", state.Phase, domain.ErrInvalidTransition)
	}

	next := state.Clone()
	withChips := 0
	for i := range next.Players {
		p := &next.Players[i]
		p.HoleCards = nil
		p.CurrentBet = 0
		p.TotalBet = 0
		p.HasActed = false
		p.IsDealer, p.IsSmallBlind, p.IsBigBlind = false, false, false
		if p.Chips == 0 {
			if p.Status != domain.PlayerStatusEliminated {
				e.logger.Info("player eliminated", "hand_id", next.HandID, "player", p.ID)
			}
			p.Status = domain.PlayerStatusEliminated
			continue
		}
		p.Status = domain.PlayerStatusActive
		withChips++
	}

	next.Phase = domain.PhaseWaiting
	next.CurrentPlayerIndex = rules.NoPlayer
	next.CurrentBet = 0
	next.MinRaise = 0
	next.GameOver = withChips < domain.MinPlayers
	if !next.GameOver {
		next.DealerIndex = rules.NextDealer(next.Players, next.DealerIndex)
	}
	return next, nil
}

// progress closes finished betting rounds, deals the following streets and
// settles the hand once it cannot continue.
func (e *Engine) progress(state *domain.GameState) error {
	for {
		if countInHand(state.Players) <= 1 {
			return e.awardUncontested(state)
		}
		if !isBettingRoundClosed(*state) {
			if state.CurrentPlayerIndex == rules.NoPlayer {
				return e.invariant("progress", fmt.Errorf("open betting round without actor: %w", domain.ErrInvalidTransition))
			}
			return nil
		}
		if state.Phase == domain.PhaseRiver {
			state.Phase = domain.PhaseShowdown
			state.CurrentPlayerIndex = rules.NoPlayer
			resolved, err := e.ResolveShowdown(*state)
			if err != nil {
				return err
			}
			*state = resolved
			return nil
		}
		if err := e.advancePhase(state); err != nil {
			return err
		}
	}
}

func (e *Engine) advancePhase(state *domain.GameState) error {
	cards, err := rules.DealStreet(&state.Deck, state.Phase)
	if err != nil {
		return e.invariant("advance_phase", err)
	}
	state.CommunityCards = append(state.CommunityCards, cards...)

	switch state.Phase {
	case domain.PhasePreflop:
		state.Phase = domain.PhaseFlop
	case domain.PhaseFlop:
		state.Phase = domain.PhaseTurn
	case domain.PhaseTurn:
		state.Phase = domain.PhaseRiver
	}

	for i := range state.Players {
		state.Players[i].CurrentBet = 0
		state.Players[i].HasActed = false
	}
	state.CurrentBet = 0
	state.MinRaise = state.BigBlind
	state.CurrentPlayerIndex = rules.FirstToActPostflop(state.Players, state.DealerIndex)

	e.logger.Debug("phase advanced",
		"hand_id", state.HandID,
		"phase", state.Phase,
		"board", fmt.Sprint(state.CommunityCards),
	)
	return nil
}

func (e *Engine) awardUncontested(state *domain.GameState) error {
	winnerIdx := rules.NoPlayer
	for i, p := range state.Players {
		if p.InHand() {
			winnerIdx = i
			break
		}
	}
	if winnerIdx == rules.NoPlayer {
		return e.invariant("award_uncontested", domain.ErrNoEligibleWinner)
	}

	state.Pot = rules.CalculatePots(rules.ContributionsFromPlayers(state.Players))
	amount := state.PotTotal()
	winner := &state.Players[winnerIdx]
	winner.Chips += amount
	clearBets(state)

	state.Awards = []domain.PotAward{{
		Amount:    amount,
		PlayerIDs: []string{winner.ID},
		Reason:    "uncontested",
	}}
	state.Showdown = nil
	state.Phase = domain.PhaseComplete
	state.CurrentPlayerIndex = rules.NoPlayer

	e.logger.Debug("uncontested pot awarded", "hand_id", state.HandID, "player", winner.ID, "amount", amount)
	return nil
}

func (e *Engine) invariant(op string, err error) error {
	wrapped := domain.NewInvariantError(op, err)
	e.logger.Error("engine invariant violated", "op", op, "error", err)
	return wrapped
}

func postBlind(state *domain.GameState, idx int, amount uint32) {
	p := &state.Players[idx]
	post := min(p.Chips, amount)
	p.Chips -= post
	p.CurrentBet += post
	p.TotalBet += post
	if p.Chips == 0 {
		p.Status = domain.PlayerStatusAllIn
	}
}

// isBettingRoundClosed reports whether nobody still owes a decision this round.
func isBettingRoundClosed(state domain.GameState) bool {
	highest := uint32(0)
	for _, p := range state.Players {
		if p.InHand() && p.CurrentBet > highest {
			highest = p.CurrentBet
		}
	}

	active := 0
	settled := 0
	var lone domain.Player
	for _, p := range state.Players {
		if !p.CanAct() {
			continue
		}
		active++
		lone = p
		if p.HasActed && p.CurrentBet == highest {
			settled++
		}
	}

	switch {
	case active == 0:
		return true
	case active == 1 && lone.CurrentBet >= highest:
		return true
	default:
		return settled == active
	}
}

// nextToAct picks the first seat after from that still owes a decision.
func nextToAct(state domain.GameState, from int) int {
	n := len(state.Players)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		p := state.Players[idx]
		if p.CanAct() && (!p.HasActed || p.CurrentBet < state.CurrentBet) {
			return idx
		}
	}
	return rules.NextActivePlayer(state.Players, from)
}

// dealOrder lists seated players starting left of the dealer.
func dealOrder(players []domain.Player, dealer int) []int {
	order := make([]int, 0, len(players))
	n := len(players)
	for i := 1; i <= n; i++ {
		idx := (dealer + i) % n
		if players[idx].Status != domain.PlayerStatusEliminated {
			order = append(order, idx)
		}
	}
	return order
}

func clearBets(state *domain.GameState) {
	for i := range state.Players {
		state.Players[i].CurrentBet = 0
		state.Players[i].TotalBet = 0
	}
	state.CurrentBet = 0
}

func countInHand(players []domain.Player) int {
	count := 0
	for _, p := range players {
		if p.InHand() {
			count++
		}
	}
	return count
}

func isBettingPhase(phase domain.Phase) bool {
	for _, p := range domain.BettingPhases {
		if p == phase {
			return true
		}
	}
	return false
}
