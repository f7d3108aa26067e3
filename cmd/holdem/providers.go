package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/rules"
	"github.com/imaddar/holdem-engine/internal/statemachine"
	"github.com/imaddar/holdem-engine/internal/tablerunner"
)

var errUnsupportedAction = errors.New("unsupported action")

type humanProvider struct {
	engine *statemachine.Engine
	in     *bufio.Scanner
	out    io.Writer
}

func newHumanProvider(engine *statemachine.Engine, in io.Reader, out io.Writer) humanProvider {
	return humanProvider{engine: engine, in: bufio.NewScanner(in), out: out}
}

func (p humanProvider) NextAction(ctx context.Context, state domain.GameState, playerID string) (domain.Action, error) {
	valid, err := p.engine.ValidActions(state, playerID)
	if err != nil {
		return domain.Action{}, err
	}
	options := describeOptions(valid)

	for {
		if err := ctx.Err(); err != nil {
			return domain.Action{}, err
		}

		fmt.Fprint(p.out, renderPrompt(state, playerID, valid, options))
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return domain.Action{}, err
			}
			return domain.Action{}, io.EOF
		}

		action, err := parseHumanAction(p.in.Text(), valid)
		if err != nil {
			fmt.Fprintf(p.out, "invalid action. valid: %s\n", options)
			continue
		}
		action.PlayerID = playerID
		if err := rules.NewBettingContext(state, state.PlayerIndex(playerID)).Validate(action); err != nil {
			fmt.Fprintf(p.out, "illegal action: %v\n", err)
			continue
		}
		return action, nil
	}
}

// parseHumanAction accepts "fold/f", "check/k", "call/c", "allin/a",
// "bet/b [amt]" and "raise/r [amt]". Raise amounts are raise-to totals; a
// bare bet or raise means the minimum.
func parseHumanAction(input string, valid rules.ValidActions) (domain.Action, error) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(parts) == 0 {
		return domain.Action{}, fmt.Errorf("%w: empty action", errUnsupportedAction)
	}

	var kind domain.ActionType
	switch parts[0] {
	case "fold", "f":
		kind = domain.ActionFold
	case "check", "k":
		kind = domain.ActionCheck
	case "call", "c":
		kind = domain.ActionCall
	case "allin", "all-in", "a":
		kind = domain.ActionAllIn
	case "bet", "b", "raise", "r":
		return parseSizedAction(parts, valid)
	default:
		return domain.Action{}, fmt.Errorf("%w: %q", errUnsupportedAction, input)
	}
	if len(parts) != 1 {
		return domain.Action{}, fmt.Errorf("%w: %s does not take an amount", errUnsupportedAction, kind)
	}
	return domain.Action{Type: kind}, nil
}

func parseSizedAction(parts []string, valid rules.ValidActions) (domain.Action, error) {
	kind := domain.ActionBet
	if parts[0] == "raise" || parts[0] == "r" {
		kind = domain.ActionRaise
	}
	// "bet" while facing a bet is read as a raise and vice versa.
	if kind == domain.ActionBet && !valid.Has(domain.ActionBet) && valid.Has(domain.ActionRaise) {
		kind = domain.ActionRaise
	} else if kind == domain.ActionRaise && !valid.Has(domain.ActionRaise) && valid.Has(domain.ActionBet) {
		kind = domain.ActionBet
	}

	switch len(parts) {
	case 1:
		amount := valid.MinBet
		if kind == domain.ActionRaise {
			amount = valid.MinRaiseTo
		}
		if amount == 0 {
			return domain.Action{}, fmt.Errorf("%w: %s is not available", errUnsupportedAction, kind)
		}
		return domain.Action{Type: kind, Amount: amount}, nil
	case 2:
		parsed, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil || parsed == 0 {
			return domain.Action{}, fmt.Errorf("%w: invalid amount %q", errUnsupportedAction, parts[1])
		}
		return domain.Action{Type: kind, Amount: uint32(parsed)}, nil
	default:
		return domain.Action{}, fmt.Errorf("%w: %s takes one amount", errUnsupportedAction, kind)
	}
}

func describeOptions(valid rules.ValidActions) string {
	options := make([]string, 0, len(valid.Actions))
	for _, kind := range valid.Actions {
		switch kind {
		case domain.ActionFold:
			options = append(options, "fold(f)")
		case domain.ActionCheck:
			options = append(options, "check(k)")
		case domain.ActionCall:
			options = append(options, fmt.Sprintf("call(c) %d", valid.CallAmount))
		case domain.ActionBet:
			options = append(options, fmt.Sprintf("bet(b) %d-%d", valid.MinBet, valid.MaxRaiseTo))
		case domain.ActionRaise:
			options = append(options, fmt.Sprintf("raise(r) to %d-%d", valid.MinRaiseTo, valid.MaxRaiseTo))
		case domain.ActionAllIn:
			options = append(options, "allin(a)")
		}
	}
	return strings.Join(options, " / ")
}

func renderPrompt(state domain.GameState, playerID string, valid rules.ValidActions, options string) string {
	idx := state.PlayerIndex(playerID)
	if idx < 0 {
		return options + "\n> "
	}
	hero := state.Players[idx]

	lines := []string{
		fmt.Sprintf("hand #%d  %s", state.HandNumber, strings.ToUpper(string(state.Phase))),
		fmt.Sprintf("board: %s", formatCards(state.CommunityCards)),
		fmt.Sprintf("pot:   %d", state.PotTotal()),
		fmt.Sprintf("you:   %s  stack %d  in round %d", pterm.LightCyan(formatCards(hero.HoleCards)), hero.Chips, hero.CurrentBet),
	}
	if valid.CallAmount > 0 {
		lines = append(lines, fmt.Sprintf("to call: %d", valid.CallAmount))
	}
	for _, p := range state.Players {
		if p.ID == playerID || p.Status == domain.PlayerStatusEliminated {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %-10s %6d  bet %4d  %s", p.ID, p.Chips, p.CurrentBet, p.Status))
	}

	box := pterm.DefaultBox.WithTitle(pterm.LightGreen("YOUR TURN")).WithTitleTopCenter().Sprint(strings.Join(lines, "\n"))
	return box + "\n" + options + "\n> "
}

// announce prints each action a provider chooses before the engine sees it.
func announce(provider tablerunner.ActionProvider, out io.Writer, label string) tablerunner.ActionProvider {
	return tablerunner.ProviderFunc(func(ctx context.Context, state domain.GameState, playerID string) (domain.Action, error) {
		action, err := provider.NextAction(ctx, state, playerID)
		if err != nil {
			return action, err
		}
		fmt.Fprintf(out, "%s (%s) -> %s\n", label, playerID, formatAction(action))
		return action, nil
	})
}

func formatAction(action domain.Action) string {
	switch action.Type {
	case domain.ActionRaise:
		return fmt.Sprintf("raise to %d", action.Amount)
	case domain.ActionBet, domain.ActionCall, domain.ActionAllIn:
		if action.Amount > 0 {
			return fmt.Sprintf("%s %d", action.Type, action.Amount)
		}
	}
	return string(action.Type)
}

func formatCards(cards []domain.Card) string {
	if len(cards) == 0 {
		return "-"
	}
	out := make([]string, 0, len(cards))
	for _, card := range cards {
		out = append(out, card.String())
	}
	return strings.Join(out, " ")
}
