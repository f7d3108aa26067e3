package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imaddar/holdem-engine/internal/domain"
)

func tablePlayers(statuses ...domain.PlayerStatus) []domain.Player {
	players := make([]domain.Player, 0, len(statuses))
	for i, status := range statuses {
		p := domain.NewPlayer(string(rune('a'+i)), i, 100)
		p.Status = status
		players = append(players, p)
	}
	return players
}

func TestNextDealerSkipsEliminated(t *testing.T) {
	t.Parallel()

	players := tablePlayers(domain.PlayerStatusActive, domain.PlayerStatusEliminated, domain.PlayerStatusActive, domain.PlayerStatusActive)
	assert.Equal(t, 2, NextDealer(players, 0))
	assert.Equal(t, 0, NextDealer(players, 3))
	assert.Equal(t, 0, NextDealer(players, -1))
}

func TestAssignBlinds(t *testing.T) {
	t.Parallel()

	ring := tablePlayers(domain.PlayerStatusActive, domain.PlayerStatusActive, domain.PlayerStatusActive, domain.PlayerStatusActive)
	sb, bb := AssignBlinds(ring, 3)
	assert.Equal(t, 0, sb)
	assert.Equal(t, 1, bb)

	headsUp := tablePlayers(domain.PlayerStatusActive, domain.PlayerStatusActive)
	sb, bb = AssignBlinds(headsUp, 1)
	assert.Equal(t, 1, sb, "heads-up dealer posts the small blind")
	assert.Equal(t, 0, bb)

	// three seats with one eliminated still play heads-up
	bustedOut := tablePlayers(domain.PlayerStatusActive, domain.PlayerStatusEliminated, domain.PlayerStatusActive)
	sb, bb = AssignBlinds(bustedOut, 2)
	assert.Equal(t, 2, sb)
	assert.Equal(t, 0, bb)

	sb, bb = AssignBlinds(tablePlayers(domain.PlayerStatusActive), 0)
	assert.Equal(t, NoPlayer, sb)
	assert.Equal(t, NoPlayer, bb)
}

func TestFirstToAct(t *testing.T) {
	t.Parallel()

	ring := tablePlayers(domain.PlayerStatusActive, domain.PlayerStatusActive, domain.PlayerStatusActive, domain.PlayerStatusActive)
	// dealer 0, sb 1, bb 2
	assert.Equal(t, 3, FirstToActPreflop(ring, 2))
	assert.Equal(t, 1, FirstToActPostflop(ring, 0))

	headsUp := tablePlayers(domain.PlayerStatusActive, domain.PlayerStatusActive)
	// dealer 0 is the small blind, bb 1
	assert.Equal(t, 0, FirstToActPreflop(headsUp, 1), "heads-up dealer acts first preflop")
	assert.Equal(t, 1, FirstToActPostflop(headsUp, 0), "heads-up big blind acts first postflop")

	// small blind all-in: postflop action starts with the big blind
	ring[1].Status = domain.PlayerStatusAllIn
	assert.Equal(t, 2, FirstToActPostflop(ring, 0))
}

func TestNextActivePlayer(t *testing.T) {
	t.Parallel()

	players := tablePlayers(
		domain.PlayerStatusActive,
		domain.PlayerStatusFolded,
		domain.PlayerStatusAllIn,
		domain.PlayerStatusEliminated,
		domain.PlayerStatusActive,
	)
	assert.Equal(t, 4, NextActivePlayer(players, 0))
	assert.Equal(t, 0, NextActivePlayer(players, 4))

	players[0].Status = domain.PlayerStatusFolded
	assert.Equal(t, 4, NextActivePlayer(players, 4), "search wraps back to the origin seat")

	players[4].Status = domain.PlayerStatusAllIn
	assert.Equal(t, NoPlayer, NextActivePlayer(players, 0))
	assert.Equal(t, NoPlayer, NextActivePlayer(nil, 0))
}
