package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/tablerunner"
)

type buildRunReportInput struct {
	Mode           string
	TableID        string
	HandsRequested int
	HumanPlayer    string
	Initial        domain.GameState
	Result         tablerunner.RunTableResult
	Timeline       []tablerunner.ActionEvent
}

type runReport struct {
	TableID        string           `json:"table_id"`
	Mode           string           `json:"mode"`
	HandsRequested int              `json:"hands_requested"`
	HandsCompleted int              `json:"hands_completed"`
	TotalActions   int              `json:"total_actions"`
	TotalFallbacks int              `json:"total_fallbacks"`
	GameOver       bool             `json:"game_over"`
	StartingStacks []runReportStack `json:"starting_stacks"`
	FinalStacks    []runReportStack `json:"final_stacks"`
	Hands          []runReportHand  `json:"hands"`
	HumanPlayer    string           `json:"human_player,omitempty"`
}

type runReportStack struct {
	PlayerID string              `json:"player_id"`
	Chips    uint32              `json:"chips"`
	Status   domain.PlayerStatus `json:"status"`
}

type runReportAction struct {
	Phase    domain.Phase      `json:"phase"`
	PlayerID string            `json:"player_id"`
	Action   domain.ActionType `json:"action"`
	Amount   uint32            `json:"amount,omitempty"`
	Fallback bool              `json:"fallback,omitempty"`
}

type runReportAward struct {
	Amount    uint32   `json:"amount"`
	PlayerIDs []string `json:"player_ids"`
	Reason    string   `json:"reason"`
}

type runReportShowdown struct {
	PlayerID  string   `json:"player_id"`
	HoleCards []string `json:"hole_cards"`
	Category  string   `json:"category"`
	BestFive  []string `json:"best_five"`
	Won       uint32   `json:"won"`
}

type runReportHand struct {
	HandID      string              `json:"hand_id"`
	HandNumber  uint64              `json:"hand_number"`
	Phase       domain.Phase        `json:"phase"`
	Actions     int                 `json:"actions"`
	Fallbacks   int                 `json:"fallbacks"`
	Pot         uint32              `json:"pot"`
	Board       []string            `json:"board"`
	Awards      []runReportAward    `json:"awards"`
	Showdown    []runReportShowdown `json:"showdown,omitempty"`
	StacksAfter []runReportStack    `json:"stacks_after"`
	Timeline    []runReportAction   `json:"timeline"`
}

func buildRunReport(input buildRunReportInput) runReport {
	report := runReport{
		TableID:        input.TableID,
		Mode:           input.Mode,
		HandsRequested: input.HandsRequested,
		HandsCompleted: input.Result.HandsCompleted,
		TotalActions:   input.Result.TotalActions,
		TotalFallbacks: input.Result.TotalFallbacks,
		GameOver:       input.Result.GameOver,
		StartingStacks: stacksOf(input.Initial),
		FinalStacks:    stacksOf(input.Result.FinalState),
		Hands:          make([]runReportHand, 0, len(input.Result.HandSummaries)),
		HumanPlayer:    input.HumanPlayer,
	}
	if len(input.Result.FinalState.Players) == 0 {
		report.FinalStacks = report.StartingStacks
	}

	timelineByHand := make(map[string][]runReportAction, len(input.Result.HandSummaries))
	for _, event := range input.Timeline {
		timelineByHand[event.HandID] = append(timelineByHand[event.HandID], runReportAction{
			Phase:    event.Phase,
			PlayerID: event.Action.PlayerID,
			Action:   event.Action.Type,
			Amount:   event.Action.Amount,
			Fallback: event.Fallback,
		})
	}

	for _, summary := range input.Result.HandSummaries {
		final := summary.FinalState
		hand := runReportHand{
			HandID:      summary.HandID,
			HandNumber:  summary.HandNumber,
			Phase:       summary.FinalPhase,
			Actions:     summary.ActionCount,
			Fallbacks:   summary.FallbackCount,
			Board:       cardStrings(final.CommunityCards),
			Awards:      make([]runReportAward, 0, len(final.Awards)),
			StacksAfter: stacksOf(final),
			Timeline:    timelineByHand[summary.HandID],
		}
		for _, award := range final.Awards {
			hand.Pot += award.Amount
			hand.Awards = append(hand.Awards, runReportAward{
				Amount:    award.Amount,
				PlayerIDs: append([]string(nil), award.PlayerIDs...),
				Reason:    award.Reason,
			})
		}
		for _, shown := range final.Showdown {
			var hole []string
			if idx := final.PlayerIndex(shown.PlayerID); idx >= 0 {
				hole = cardStrings(final.Players[idx].HoleCards)
			}
			hand.Showdown = append(hand.Showdown, runReportShowdown{
				PlayerID:  shown.PlayerID,
				HoleCards: hole,
				Category:  shown.Category,
				BestFive:  cardStrings(shown.BestFive),
				Won:       shown.Won,
			})
		}
		if hand.Timeline == nil {
			hand.Timeline = []runReportAction{}
		}
		report.Hands = append(report.Hands, hand)
	}
	return report
}

func renderRunOutput(report runReport) (string, error) {
	var b strings.Builder

	header := []string{
		fmt.Sprintf("table:     %s", report.TableID),
		fmt.Sprintf("mode:      %s", report.Mode),
		fmt.Sprintf("hands:     %d / %d", report.HandsCompleted, report.HandsRequested),
		fmt.Sprintf("actions:   %d (fallbacks %d)", report.TotalActions, report.TotalFallbacks),
	}
	if report.GameOver {
		header = append(header, pterm.LightRed("game over: one player holds every chip"))
	}
	b.WriteString(pterm.DefaultBox.WithTitle(pterm.LightGreen("RUN SUMMARY")).WithTitleTopCenter().Sprint(strings.Join(header, "\n")))
	b.WriteString("\n")

	for _, hand := range report.Hands {
		lines := []string{
			fmt.Sprintf("board: %s", joinOrDash(hand.Board)),
			fmt.Sprintf("pot:   %d", hand.Pot),
		}
		for _, award := range hand.Awards {
			lines = append(lines, fmt.Sprintf("%s %d -> %s", pterm.LightYellow(award.Reason), award.Amount, strings.Join(award.PlayerIDs, ", ")))
		}
		for _, shown := range hand.Showdown {
			line := fmt.Sprintf("%-10s %s  %s (%s)", shown.PlayerID, joinOrDash(shown.HoleCards), shown.Category, strings.Join(shown.BestFive, " "))
			if shown.Won > 0 {
				line += pterm.LightGreen(fmt.Sprintf("  +%d", shown.Won))
			}
			lines = append(lines, line)
		}
		if len(hand.Timeline) > 0 {
			lines = append(lines, "", timelineLine(hand.Timeline))
		}
		title := fmt.Sprintf("HAND %d", hand.HandNumber)
		b.WriteString(pterm.DefaultBox.WithTitle(pterm.LightCyan(title)).Sprint(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	data := pterm.TableData{{"player", "start", "final", "delta", "status"}}
	starting := make(map[string]uint32, len(report.StartingStacks))
	for _, stack := range report.StartingStacks {
		starting[stack.PlayerID] = stack.Chips
	}
	for _, stack := range report.FinalStacks {
		start := starting[stack.PlayerID]
		delta := int64(stack.Chips) - int64(start)
		data = append(data, []string{
			stack.PlayerID,
			fmt.Sprintf("%d", start),
			fmt.Sprintf("%d", stack.Chips),
			fmt.Sprintf("%+d", delta),
			string(stack.Status),
		})
	}
	stacks, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return "", fmt.Errorf("render stacks: %w", err)
	}
	b.WriteString(stacks)
	b.WriteString("\n")
	return b.String(), nil
}

func writeRunReportJSON(path string, report runReport) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func timelineLine(timeline []runReportAction) string {
	parts := make([]string, 0, len(timeline))
	var phase domain.Phase
	for _, entry := range timeline {
		prefix := ""
		if entry.Phase != phase {
			phase = entry.Phase
			prefix = strings.ToUpper(string(phase)) + ": "
		}
		text := fmt.Sprintf("%s%s %s", prefix, entry.PlayerID, entry.Action)
		if entry.Amount > 0 {
			text += fmt.Sprintf(" %d", entry.Amount)
		}
		if entry.Fallback {
			text += "*"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", ")
}

func stacksOf(state domain.GameState) []runReportStack {
	stacks := make([]runReportStack, 0, len(state.Players))
	for _, p := range state.Players {
		stacks = append(stacks, runReportStack{PlayerID: p.ID, Chips: p.Chips, Status: p.Status})
	}
	return stacks
}

func cardStrings(cards []domain.Card) []string {
	out := make([]string, 0, len(cards))
	for _, card := range cards {
		out = append(out, card.String())
	}
	return out
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, " ")
}
