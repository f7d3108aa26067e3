package tablerunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/policy"
)

// RunBot plays playerID at table with p until ctx is done, the player is
// eliminated or the game is over. Each decision waits thinkDelay first. A
// decision the table rejects is replaced by a fallback check or fold.
func RunBot(ctx context.Context, table *Table, playerID string, p policy.Policy, thinkDelay time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		state, err := table.WaitTurn(ctx, playerID)
		if err != nil {
			if errors.Is(err, ErrPlayerOut) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if thinkDelay > 0 {
			timer := time.NewTimer(thinkDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		action, err := p.Decide(state, playerID)
		if err == nil {
			action.PlayerID = playerID
			_, err = table.Submit(action)
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, domain.ErrNotYourTurn), errors.Is(err, domain.ErrHandNotInProgress):
			// the table moved on while we were thinking
			continue
		case domain.IsInvariantViolation(err):
			return err
		}

		logger.Warn("bot decision rejected", "player", playerID, "error", err)
		if _, err := table.Fallback(playerID); err != nil &&
			!errors.Is(err, domain.ErrNotYourTurn) && !errors.Is(err, domain.ErrHandNotInProgress) {
			return err
		}
	}
}

// PolicyProvider adapts a policy to the runner's provider interface.
func PolicyProvider(p policy.Policy) ActionProvider {
	return ProviderFunc(func(_ context.Context, state domain.GameState, playerID string) (domain.Action, error) {
		return p.Decide(state, playerID)
	})
}

// SeatProviders routes each player to its own provider and everyone else
// to Default.
type SeatProviders struct {
	Players map[string]ActionProvider
	Default ActionProvider
}

func (s SeatProviders) NextAction(ctx context.Context, state domain.GameState, playerID string) (domain.Action, error) {
	if provider, ok := s.Players[playerID]; ok {
		return provider.NextAction(ctx, state, playerID)
	}
	if s.Default == nil {
		return domain.Action{}, ErrRunnerMisconfigured
	}
	return s.Default.NextAction(ctx, state, playerID)
}
