package rules

import "github.com/imaddar/holdem-engine/internal/domain"

// NoPlayer is returned when no seat satisfies a position query.
const NoPlayer = -1

func seated(p domain.Player) bool {
	return p.Status != domain.PlayerStatusEliminated
}

// SeatedCount is the number of players dealt into a hand.
func SeatedCount(players []domain.Player) int {
	n := 0
	for _, p := range players {
		if seated(p) {
			n++
		}
	}
	return n
}

func IsHeadsUp(players []domain.Player) bool {
	return SeatedCount(players) == 2
}

// NextDealer moves the button clockwise to the next seat still in the game.
// A negative current picks the first seated player.
func NextDealer(players []domain.Player, current int) int {
	return nextSeat(players, current, seated)
}

// AssignBlinds returns the small and big blind seats for dealer. Heads-up the
// dealer posts the small blind.
func AssignBlinds(players []domain.Player, dealer int) (smallBlind int, bigBlind int) {
	if SeatedCount(players) < 2 {
		return NoPlayer, NoPlayer
	}
	if IsHeadsUp(players) {
		smallBlind = dealer
	} else {
		smallBlind = nextSeat(players, dealer, seated)
	}
	bigBlind = nextSeat(players, smallBlind, seated)
	return smallBlind, bigBlind
}

// FirstToActPreflop is the first seat after the big blind that can act.
// Heads-up that is the dealer.
func FirstToActPreflop(players []domain.Player, bigBlind int) int {
	return NextActivePlayer(players, bigBlind)
}

// FirstToActPostflop is the first seat after the dealer that can act: the
// small blind, or the big blind heads-up.
func FirstToActPostflop(players []domain.Player, dealer int) int {
	return NextActivePlayer(players, dealer)
}

// NextActivePlayer searches clockwise from the seat after from, ending with
// from itself, for a player who can still act. Folded, all-in and
// eliminated seats are skipped.
func NextActivePlayer(players []domain.Player, from int) int {
	return nextSeat(players, from, domain.Player.CanAct)
}

func nextSeat(players []domain.Player, from int, ok func(domain.Player) bool) int {
	n := len(players)
	if n == 0 {
		return NoPlayer
	}
	if from < 0 || from >= n {
		from = n - 1
	}
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if ok(players[idx]) {
			return idx
		}
	}
	return NoPlayer
}
