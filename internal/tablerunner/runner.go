package tablerunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/statemachine"
)

const defaultMaxActionsPerHand = 512

var (
	ErrActionLimitExceeded = errors.New("action limit exceeded")
	ErrRunnerMisconfigured = errors.New("runner misconfigured")
	ErrContextCancelled    = errors.New("runner context cancelled")
	ErrInvalidHandsToRun   = errors.New("hands to run must be greater than zero")
	ErrPlayerOut           = errors.New("player is out of the game")
)

// ActionProvider chooses the next action for playerID. state is a private
// copy; providers may keep or modify it freely.
type ActionProvider interface {
	NextAction(ctx context.Context, state domain.GameState, playerID string) (domain.Action, error)
}

type ProviderFunc func(ctx context.Context, state domain.GameState, playerID string) (domain.Action, error)

func (f ProviderFunc) NextAction(ctx context.Context, state domain.GameState, playerID string) (domain.Action, error) {
	return f(ctx, state, playerID)
}

// ActionEvent describes one applied action. Action carries the chips the
// player actually committed; Phase is the street it was taken on.
type ActionEvent struct {
	HandID     string
	HandNumber uint64
	Phase      domain.Phase
	Sequence   int
	Action     domain.Action
	Fallback   bool
	State      domain.GameState
}

type RunnerConfig struct {
	MaxActionsPerHand int
	Logger            *slog.Logger
	OnHandStart       func(domain.GameState)
	OnAction          func(ActionEvent)
	OnHandComplete    func(HandSummary)
}

type Runner struct {
	engine   *statemachine.Engine
	provider ActionProvider
	config   RunnerConfig
}

type RunHandResult struct {
	FinalState    domain.GameState
	ActionCount   int
	FallbackCount int
}

type RunTableInput struct {
	HandsToRun int
	State      domain.GameState
}

type HandSummary struct {
	HandID        string
	HandNumber    uint64
	FinalPhase    domain.Phase
	ActionCount   int
	FallbackCount int
	FinalState    domain.GameState
}

type RunTableResult struct {
	HandsCompleted int
	GameOver       bool
	FinalState     domain.GameState
	TotalActions   int
	TotalFallbacks int
	HandSummaries  []HandSummary
}

func New(engine *statemachine.Engine, provider ActionProvider, config RunnerConfig) Runner {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return Runner{
		engine:   engine,
		provider: provider,
		config:   config,
	}
}

// RunTable plays up to input.HandsToRun hands starting from a waiting state.
// It stops early, without error, once the game is over.
func (r Runner) RunTable(ctx context.Context, input RunTableInput) (RunTableResult, error) {
	result := RunTableResult{FinalState: input.State}

	if input.HandsToRun <= 0 {
		return result, ErrInvalidHandsToRun
	}
	if r.engine == nil || r.provider == nil {
		return result, ErrRunnerMisconfigured
	}
	if err := checkContext(ctx); err != nil {
		return result, err
	}

	state := input.State
	result.HandSummaries = make([]HandSummary, 0, input.HandsToRun)

	for i := 0; i < input.HandsToRun; i++ {
		if state.GameOver {
			break
		}
		if err := checkContext(ctx); err != nil {
			result.FinalState = state
			return result, err
		}

		handResult, err := r.RunHand(ctx, state)
		if err != nil {
			result.FinalState = handResult.FinalState
			return result, err
		}

		result.HandsCompleted++
		result.TotalActions += handResult.ActionCount
		result.TotalFallbacks += handResult.FallbackCount
		summary := HandSummary{
			HandID:        handResult.FinalState.HandID,
			HandNumber:    handResult.FinalState.HandNumber,
			FinalPhase:    handResult.FinalState.Phase,
			ActionCount:   handResult.ActionCount,
			FallbackCount: handResult.FallbackCount,
			FinalState:    handResult.FinalState.Clone(),
		}
		result.HandSummaries = append(result.HandSummaries, summary)
		if r.config.OnHandComplete != nil {
			r.config.OnHandComplete(summary)
		}

		state, err = r.engine.EndHand(handResult.FinalState)
		if err != nil {
			result.FinalState = handResult.FinalState
			return result, fmt.Errorf("end hand %d: %w", summary.HandNumber, err)
		}
	}

	result.GameOver = state.GameOver
	result.FinalState = state
	return result, nil
}

// RunHand starts a hand from a waiting state and asks the provider for
// actions until the hand is complete. Provider errors and rejected actions
// are replaced by a check, or a fold when checking is not allowed.
func (r Runner) RunHand(ctx context.Context, waiting domain.GameState) (RunHandResult, error) {
	result := RunHandResult{FinalState: waiting}

	if r.engine == nil || r.provider == nil {
		return result, ErrRunnerMisconfigured
	}
	if err := checkContext(ctx); err != nil {
		return result, err
	}

	maxActions := r.config.MaxActionsPerHand
	if maxActions <= 0 {
		maxActions = defaultMaxActionsPerHand
	}

	state, err := r.engine.StartHand(waiting)
	if err != nil {
		return result, err
	}
	result.FinalState = state
	if r.config.OnHandStart != nil {
		r.config.OnHandStart(state.Clone())
	}

	for state.Phase != domain.PhaseComplete {
		if err := checkContext(ctx); err != nil {
			result.FinalState = state
			return result, err
		}
		if result.ActionCount >= maxActions {
			return result, fmt.Errorf("%w: applied %d actions (max %d)", ErrActionLimitExceeded, result.ActionCount, maxActions)
		}

		current, ok := r.engine.CurrentPlayer(state)
		if !ok {
			return result, domain.NewInvariantError("run_hand", fmt.Errorf("no player to act in %s: %w", state.Phase, domain.ErrInvalidTransition))
		}
		phase := state.Phase

		var (
			next     domain.GameState
			fallback bool
		)
		action, err := r.provider.NextAction(ctx, state.Clone(), current.ID)
		if err == nil {
			action.PlayerID = current.ID
			next, err = r.engine.ApplyAction(state, action)
			if err != nil && domain.IsInvariantViolation(err) {
				return result, err
			}
		}
		if err != nil {
			if ctxErr := checkContext(ctx); ctxErr != nil {
				result.FinalState = state
				return result, ctxErr
			}
			r.config.Logger.Warn("using fallback action",
				"hand_id", state.HandID,
				"player", current.ID,
				"error", err,
			)
			next, err = r.applyFallback(state, current.ID)
			if err != nil {
				return result, fmt.Errorf("apply fallback: %w", err)
			}
			fallback = true
			result.FallbackCount++
		}

		state = next
		result.ActionCount++
		result.FinalState = state

		if r.config.OnAction != nil {
			r.config.OnAction(ActionEvent{
				HandID:     state.HandID,
				HandNumber: state.HandNumber,
				Phase:      phase,
				Sequence:   result.ActionCount,
				Action:     state.ActionHistory[len(state.ActionHistory)-1],
				Fallback:   fallback,
				State:      state.Clone(),
			})
		}
	}

	r.config.Logger.Info("hand complete",
		"hand_id", state.HandID,
		"hand_number", state.HandNumber,
		"actions", result.ActionCount,
		"fallbacks", result.FallbackCount,
		"pot", potAwarded(state),
	)
	return result, nil
}

func (r Runner) applyFallback(state domain.GameState, playerID string) (domain.GameState, error) {
	return applyFallback(r.engine, state, playerID)
}

// applyFallback checks for playerID, or folds when a check is illegal.
func applyFallback(engine *statemachine.Engine, state domain.GameState, playerID string) (domain.GameState, error) {
	next, err := engine.ApplyAction(state, fallbackAction(domain.ActionCheck, playerID))
	if err == nil {
		return next, nil
	}

	next, foldErr := engine.ApplyAction(state, fallbackAction(domain.ActionFold, playerID))
	if foldErr != nil {
		return state, fmt.Errorf("fallback check failed (%v) and fallback fold failed (%w)", err, foldErr)
	}
	return next, nil
}

func fallbackAction(kind domain.ActionType, playerID string) domain.Action {
	return domain.Action{Type: kind, PlayerID: playerID}
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
	default:
		return nil
	}
}

func potAwarded(state domain.GameState) uint32 {
	var total uint32
	for _, award := range state.Awards {
		total += award.Amount
	}
	return total
}
