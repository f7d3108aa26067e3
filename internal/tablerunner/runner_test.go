package tablerunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/policy"
	"github.com/imaddar/holdem-engine/internal/rules"
	"github.com/imaddar/holdem-engine/internal/statemachine"
)

// b holds Ah Kh and makes a heart flush; a holds Qc Qd.
const flushForB = "Ah Qc Kh Qd 3s 2h 7h 9h 3d 4c 3c Js"

func TestRunHand_CompletesWithScriptedActions(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, stackedShuffler{order: domain.MustParseCards(flushForB)})
	runner := New(engine, newScriptedProvider(
		actionCall(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
	), quietConfig(RunnerConfig{}))

	result, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if err != nil {
		t.Fatalf("RunHand failed: %v", err)
	}

	if result.FinalState.Phase != domain.PhaseComplete {
		t.Fatalf("expected complete phase, got %q", result.FinalState.Phase)
	}
	if result.ActionCount != 8 || result.FallbackCount != 0 {
		t.Fatalf("expected 8 actions without fallbacks, got %d/%d", result.ActionCount, result.FallbackCount)
	}
	if got := result.FinalState.Players[1].Chips; got != 1010 {
		t.Fatalf("expected b to win the pot, got %d chips", got)
	}
	if chipTotal(result.FinalState) != 2000 {
		t.Fatalf("chip conservation failed: got %d", chipTotal(result.FinalState))
	}
}

func TestRunHand_UsesFallbackWhenProviderErrors(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	runner := New(engine, newScriptedProvider(scriptedStep{err: errors.New("boom")}), quietConfig(RunnerConfig{}))

	result, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if err != nil {
		t.Fatalf("RunHand failed: %v", err)
	}
	if result.FallbackCount != 1 {
		t.Fatalf("expected one fallback, got %d", result.FallbackCount)
	}
	// a owes the rest of the big blind, so the fallback is a fold
	if result.FinalState.Phase != domain.PhaseComplete || result.FinalState.Players[0].Status != domain.PlayerStatusFolded {
		t.Fatalf("expected a to fold, got phase %s status %s", result.FinalState.Phase, result.FinalState.Players[0].Status)
	}
}

func TestRunHand_UsesFallbackWhenProviderReturnsIllegalAction(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	runner := New(engine, newScriptedProvider(actionCheck()), quietConfig(RunnerConfig{}))

	result, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if err != nil {
		t.Fatalf("RunHand failed: %v", err)
	}
	if result.FallbackCount == 0 {
		t.Fatal("expected fallback count > 0")
	}
	if result.FinalState.Phase != domain.PhaseComplete {
		t.Fatalf("expected complete phase after fallback fold, got %q", result.FinalState.Phase)
	}
	if got := result.FinalState.Players[1].Chips; got != 1005 {
		t.Fatalf("expected b to collect the small blind, got %d chips", got)
	}
}

func TestRunHand_FallbackChecksWhenCheckIsLegal(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	runner := New(engine, newScriptedProvider(
		actionCall(),
		scriptedStep{err: errors.New("timeout")},
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
	), quietConfig(RunnerConfig{}))

	result, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if err != nil {
		t.Fatalf("RunHand failed: %v", err)
	}
	if result.FallbackCount != 1 {
		t.Fatalf("expected one fallback, got %d", result.FallbackCount)
	}
	history := result.FinalState.ActionHistory
	if history[1].Type != domain.ActionCheck || history[1].PlayerID != "b" {
		t.Fatalf("expected b's fallback to be a check, got %+v", history[1])
	}
	if result.FinalState.Phase != domain.PhaseComplete || len(result.FinalState.CommunityCards) != 5 {
		t.Fatalf("expected hand to reach showdown, got %s", result.FinalState.Phase)
	}
}

func TestRunHand_StopsOnActionLimit(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	runner := New(engine, newScriptedProvider(
		actionCall(),
		actionCheck(),
		actionCheck(),
		actionCheck(),
	), quietConfig(RunnerConfig{MaxActionsPerHand: 2}))

	_, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if !errors.Is(err, ErrActionLimitExceeded) {
		t.Fatalf("expected ErrActionLimitExceeded, got %v", err)
	}
}

func TestRunHand_RespectsContextCancellation(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	runner := New(engine, newScriptedProvider(actionCall()), quietConfig(RunnerConfig{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.RunHand(ctx, newGame(t, engine, "a", "b"))
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunHand_PropagatesStartHandError(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	state := newGame(t, engine, "a", "b")
	state.Players[1].Chips = 0

	runner := New(engine, newScriptedProvider(), quietConfig(RunnerConfig{}))
	_, err := runner.RunHand(context.Background(), state)
	if !errors.Is(err, domain.ErrGameOver) {
		t.Fatalf("expected domain.ErrGameOver, got %v", err)
	}
}

func TestRunHand_RequiresEngineAndProvider(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	_, err := New(engine, nil, RunnerConfig{}).RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if !errors.Is(err, ErrRunnerMisconfigured) {
		t.Fatalf("expected ErrRunnerMisconfigured, got %v", err)
	}
	_, err = New(nil, newScriptedProvider(), RunnerConfig{}).RunTable(context.Background(), RunTableInput{HandsToRun: 1})
	if !errors.Is(err, ErrRunnerMisconfigured) {
		t.Fatalf("expected ErrRunnerMisconfigured, got %v", err)
	}
}

func TestRunHand_EmitsHooks(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, stackedShuffler{order: domain.MustParseCards(flushForB)})
	var (
		started []string
		events  []ActionEvent
	)
	runner := New(engine, PolicyProvider(policy.Passive{}), quietConfig(RunnerConfig{
		OnHandStart: func(state domain.GameState) { started = append(started, state.HandID) },
		OnAction:    func(event ActionEvent) { events = append(events, event) },
	}))

	result, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b"))
	if err != nil {
		t.Fatalf("RunHand failed: %v", err)
	}
	if len(started) != 1 || started[0] != result.FinalState.HandID {
		t.Fatalf("expected one start hook for %s, got %v", result.FinalState.HandID, started)
	}
	if len(events) != result.ActionCount {
		t.Fatalf("expected %d action events, got %d", result.ActionCount, len(events))
	}
	first := events[0]
	if first.Phase != domain.PhasePreflop || first.Action.Type != domain.ActionCall || first.Action.Amount != 5 || first.Sequence != 1 {
		t.Fatalf("unexpected first event %+v", first)
	}
	last := events[len(events)-1]
	if last.Phase != domain.PhaseRiver || last.State.Phase != domain.PhaseComplete {
		t.Fatalf("expected last event on the river to complete the hand, got %s -> %s", last.Phase, last.State.Phase)
	}
}

func TestRunTable_PlaysRequestedHands(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(7))
	var summaries []HandSummary
	runner := New(engine, PolicyProvider(policy.NewHandStrength()), quietConfig(RunnerConfig{
		OnHandComplete: func(summary HandSummary) { summaries = append(summaries, summary) },
	}))

	state := newGame(t, engine, "a", "b", "c", "d")
	result, err := runner.RunTable(context.Background(), RunTableInput{HandsToRun: 5, State: state})
	if err != nil {
		t.Fatalf("RunTable failed: %v", err)
	}
	if result.HandsCompleted != len(summaries) || len(result.HandSummaries) != len(summaries) {
		t.Fatalf("expected one summary per hand, got %d/%d/%d", result.HandsCompleted, len(result.HandSummaries), len(summaries))
	}
	if !result.GameOver && result.HandsCompleted != 5 {
		t.Fatalf("expected 5 hands, got %d", result.HandsCompleted)
	}
	for i, summary := range result.HandSummaries {
		if summary.HandNumber != uint64(i+1) || summary.FinalPhase != domain.PhaseComplete {
			t.Fatalf("unexpected summary %d: %+v", i, summary)
		}
	}
	if result.FinalState.Phase != domain.PhaseWaiting {
		t.Fatalf("expected waiting table, got %s", result.FinalState.Phase)
	}
	if chipTotal(result.FinalState) != 4000 {
		t.Fatalf("chip conservation failed: got %d", chipTotal(result.FinalState))
	}
}

func TestRunTable_StopsWhenGameIsOver(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, stackedShuffler{order: domain.MustParseCards(flushForB)})
	runner := New(engine, PolicyProvider(policy.Passive{}), quietConfig(RunnerConfig{}))

	state := newGame(t, engine, "a", "b")
	state.Players[0].Chips = 10

	result, err := runner.RunTable(context.Background(), RunTableInput{HandsToRun: 5, State: state})
	if err != nil {
		t.Fatalf("RunTable failed: %v", err)
	}
	if !result.GameOver || result.HandsCompleted != 1 {
		t.Fatalf("expected game over after one hand, got over=%v hands=%d", result.GameOver, result.HandsCompleted)
	}
	if result.FinalState.Players[0].Status != domain.PlayerStatusEliminated || result.FinalState.Players[1].Chips != 1010 {
		t.Fatalf("expected a eliminated and b with 1010, got %+v", result.FinalState.Players)
	}
}

func TestRunTable_RejectsInvalidHandsToRun(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(1))
	_, err := New(engine, newScriptedProvider(), RunnerConfig{}).RunTable(context.Background(), RunTableInput{State: newGame(t, engine, "a", "b")})
	if !errors.Is(err, ErrInvalidHandsToRun) {
		t.Fatalf("expected ErrInvalidHandsToRun, got %v", err)
	}
}

func TestSeatProvidersRoutesByPlayer(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, rules.NewSeededShuffler(3))
	folder := ProviderFunc(func(_ context.Context, _ domain.GameState, playerID string) (domain.Action, error) {
		return domain.Action{Type: domain.ActionFold, PlayerID: playerID}, nil
	})
	runner := New(engine, SeatProviders{
		Players: map[string]ActionProvider{"a": folder},
		Default: PolicyProvider(policy.Passive{}),
	}, quietConfig(RunnerConfig{}))

	result, err := runner.RunHand(context.Background(), newGame(t, engine, "a", "b", "c"))
	if err != nil {
		t.Fatalf("RunHand failed: %v", err)
	}
	if result.FinalState.Players[0].Status != domain.PlayerStatusFolded {
		t.Fatalf("expected a to fold, got %s", result.FinalState.Players[0].Status)
	}
	if result.FallbackCount != 0 {
		t.Fatalf("expected no fallbacks, got %d", result.FallbackCount)
	}

	_, err = SeatProviders{}.NextAction(context.Background(), result.FinalState, "z")
	if !errors.Is(err, ErrRunnerMisconfigured) {
		t.Fatalf("expected ErrRunnerMisconfigured, got %v", err)
	}
}

type scriptedProvider struct {
	steps []scriptedStep
	i     int
}

type scriptedStep struct {
	action domain.Action
	err    error
}

func newScriptedProvider(steps ...scriptedStep) *scriptedProvider {
	return &scriptedProvider{steps: steps}
}

func (p *scriptedProvider) NextAction(_ context.Context, _ domain.GameState, playerID string) (domain.Action, error) {
	if p.i >= len(p.steps) {
		return domain.Action{}, fmt.Errorf("provider script exhausted at index %d", p.i)
	}
	step := p.steps[p.i]
	p.i++
	step.action.PlayerID = playerID
	return step.action, step.err
}

func actionCall() scriptedStep {
	return scriptedStep{action: domain.Action{Type: domain.ActionCall}}
}

func actionCheck() scriptedStep {
	return scriptedStep{action: domain.Action{Type: domain.ActionCheck}}
}

func quietConfig(config RunnerConfig) RunnerConfig {
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return config
}

func newTestEngine(t *testing.T, shuffler rules.Shuffler) *statemachine.Engine {
	t.Helper()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	engine, err := statemachine.NewEngine(
		domain.DefaultGameConfig(),
		statemachine.WithShuffler(shuffler),
		statemachine.WithClock(func() time.Time { return fixed }),
		statemachine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func newGame(t *testing.T, engine *statemachine.Engine, ids ...string) domain.GameState {
	t.Helper()
	state, err := engine.NewGame(ids)
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	return state
}

func chipTotal(state domain.GameState) uint64 {
	return state.ChipTotal()
}

// stackedShuffler puts order on top of the deck, first card dealt first.
type stackedShuffler struct {
	order []domain.Card
}

func (s stackedShuffler) Shuffle(cards []domain.Card) error {
	rest := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		stacked := false
		for _, o := range s.order {
			if o == card {
				stacked = true
				break
			}
		}
		if !stacked {
			rest = append(rest, card)
		}
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		rest = append(rest, s.order[i])
	}
	copy(cards, rest)
	return nil
}
