package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/tablerunner"
)

func sampleReportInput() buildRunReportInput {
	initial := domain.GameState{Players: []domain.Player{
		{ID: "a", Chips: 1000, Status: domain.PlayerStatusActive},
		{ID: "b", Chips: 1000, Status: domain.PlayerStatusActive},
	}}
	final := domain.GameState{
		HandID:         "hand-1",
		HandNumber:     1,
		Phase:          domain.PhaseComplete,
		CommunityCards: domain.MustParseCards("As Kd Qc Jh 2s"),
		Players: []domain.Player{
			{ID: "a", Chips: 900, Status: domain.PlayerStatusActive, HoleCards: domain.MustParseCards("7c 8c")},
			{ID: "b", Chips: 1100, Status: domain.PlayerStatusActive, HoleCards: domain.MustParseCards("Ah Ad")},
		},
		Awards: []domain.PotAward{{Amount: 200, PlayerIDs: []string{"b"}, Reason: "main_pot"}},
		Showdown: []domain.ShowdownHand{
			{PlayerID: "b", Category: "three of a kind", BestFive: domain.MustParseCards("Ah Ad As Kd Qc"), Won: 200},
			{PlayerID: "a", Category: "high card", BestFive: domain.MustParseCards("As Kd Qc Jh 8c")},
		},
	}
	return buildRunReportInput{
		Mode:           modeSim,
		TableID:        "local-table-1",
		HandsRequested: 2,
		Initial:        initial,
		Result: tablerunner.RunTableResult{
			HandsCompleted: 1,
			FinalState:     final,
			TotalActions:   3,
			HandSummaries: []tablerunner.HandSummary{{
				HandID:      "hand-1",
				HandNumber:  1,
				FinalPhase:  domain.PhaseComplete,
				ActionCount: 3,
				FinalState:  final,
			}},
		},
		Timeline: []tablerunner.ActionEvent{
			{HandID: "hand-1", Phase: domain.PhasePreflop, Sequence: 1, Action: domain.Action{Type: domain.ActionRaise, PlayerID: "a", Amount: 95}},
			{HandID: "hand-1", Phase: domain.PhasePreflop, Sequence: 2, Action: domain.Action{Type: domain.ActionCall, PlayerID: "b", Amount: 90}},
			{HandID: "hand-1", Phase: domain.PhaseFlop, Sequence: 3, Action: domain.Action{Type: domain.ActionCheck, PlayerID: "b"}, Fallback: true},
		},
	}
}

func TestBuildRunReportCollectsShowdownAndTimeline(t *testing.T) {
	t.Parallel()

	report := buildRunReport(sampleReportInput())
	if len(report.Hands) != 1 {
		t.Fatalf("expected one hand, got %d", len(report.Hands))
	}
	hand := report.Hands[0]
	if hand.Pot != 200 || strings.Join(hand.Board, " ") != "As Kd Qc Jh 2s" {
		t.Fatalf("unexpected pot/board %+v", hand)
	}
	if len(hand.Showdown) != 2 || strings.Join(hand.Showdown[0].HoleCards, " ") != "Ah Ad" || hand.Showdown[0].Won != 200 {
		t.Fatalf("unexpected showdown %+v", hand.Showdown)
	}
	if len(hand.Timeline) != 3 || !hand.Timeline[2].Fallback || hand.Timeline[0].Amount != 95 {
		t.Fatalf("unexpected timeline %+v", hand.Timeline)
	}
	if report.FinalStacks[1].Chips != 1100 || report.StartingStacks[1].Chips != 1000 {
		t.Fatalf("unexpected stacks start=%+v final=%+v", report.StartingStacks, report.FinalStacks)
	}
}

func TestBuildRunReportWithoutFinalStateKeepsStartingStacks(t *testing.T) {
	t.Parallel()

	input := sampleReportInput()
	input.Result = tablerunner.RunTableResult{}
	report := buildRunReport(input)
	if len(report.FinalStacks) != 2 || report.FinalStacks[0].Chips != 1000 {
		t.Fatalf("expected starting stacks to stand in, got %+v", report.FinalStacks)
	}
	if len(report.Hands) != 0 {
		t.Fatalf("expected no hands, got %d", len(report.Hands))
	}
}

func TestRenderRunOutputIncludesSections(t *testing.T) {
	pterm.DisableColor()

	rendered, err := renderRunOutput(buildRunReport(sampleReportInput()))
	if err != nil {
		t.Fatalf("renderRunOutput failed: %v", err)
	}
	for _, want := range []string{"RUN SUMMARY", "HAND 1", "main_pot 200 -> b", "three of a kind", "PREFLOP: a raise 95", "FLOP: b check*", "+100", "-100"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in output:\n%s", want, rendered)
		}
	}
}

func TestWriteRunReportJSONCreatesDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	if err := writeRunReportJSON(path, buildRunReport(sampleReportInput())); err != nil {
		t.Fatalf("writeRunReportJSON failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded["table_id"] != "local-table-1" || decoded["hands_completed"] != float64(1) {
		t.Fatalf("unexpected report fields %v", decoded)
	}
}
