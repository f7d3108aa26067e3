package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/imaddar/holdem-engine/internal/domain"
)

func runRepositoryContractTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Helper()

	t.Run("table run upsert and get", func(t *testing.T) {
		repo := newRepo(t)
		started := contractNow()

		if _, ok, err := repo.GetTableRun("table-1"); err != nil || ok {
			t.Fatalf("expected no table run, got ok=%v err=%v", ok, err)
		}

		record := TableRunRecord{
			TableID:        "table-1",
			Status:         TableRunStatusRunning,
			StartedAt:      started,
			HandsRequested: 10,
			CurrentHandNo:  2,
		}
		if err := repo.UpsertTableRun(record); err != nil {
			t.Fatalf("UpsertTableRun failed: %v", err)
		}

		ended := started.Add(time.Minute)
		record.Status = TableRunStatusFailed
		record.EndedAt = &ended
		record.Error = "boom"
		record.HandsCompleted = 3
		record.TotalActions = 40
		record.TotalFallbacks = 1
		if err := repo.UpsertTableRun(record); err != nil {
			t.Fatalf("UpsertTableRun update failed: %v", err)
		}

		got, ok, err := repo.GetTableRun("table-1")
		if err != nil || !ok {
			t.Fatalf("GetTableRun failed: ok=%v err=%v", ok, err)
		}
		if got.Status != TableRunStatusFailed || got.Error != "boom" || got.HandsCompleted != 3 ||
			got.TotalActions != 40 || got.TotalFallbacks != 1 || got.CurrentHandNo != 2 || got.HandsRequested != 10 {
			t.Fatalf("unexpected table run %+v", got)
		}
		if !got.StartedAt.Equal(started) || got.EndedAt == nil || !got.EndedAt.Equal(ended) {
			t.Fatalf("unexpected table run times %v %v", got.StartedAt, got.EndedAt)
		}
	})

	t.Run("hands are listed by hand number", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()

		for _, rec := range []HandRecord{
			{HandID: "h2", TableID: "t1", HandNumber: 2, StartedAt: now.Add(2 * time.Minute), FinalPhase: domain.PhasePreflop},
			{HandID: "h1", TableID: "t1", HandNumber: 1, StartedAt: now.Add(time.Minute), FinalPhase: domain.PhasePreflop},
			{HandID: "other", TableID: "t2", HandNumber: 1, StartedAt: now, FinalPhase: domain.PhasePreflop},
		} {
			if err := repo.CreateHand(rec); err != nil {
				t.Fatalf("CreateHand %s failed: %v", rec.HandID, err)
			}
		}

		hands, err := repo.ListHands("t1")
		if err != nil {
			t.Fatalf("ListHands failed: %v", err)
		}
		if len(hands) != 2 || hands[0].HandID != "h1" || hands[1].HandID != "h2" {
			t.Fatalf("expected [h1 h2], got %+v", hands)
		}
		if hands[0].EndedAt != nil {
			t.Fatal("expected open hand to have no EndedAt")
		}
	})

	t.Run("duplicate hand is rejected", func(t *testing.T) {
		repo := newRepo(t)
		record := HandRecord{HandID: "dup", TableID: "t1", HandNumber: 1, StartedAt: contractNow(), FinalPhase: domain.PhasePreflop}
		if err := repo.CreateHand(record); err != nil {
			t.Fatalf("CreateHand failed: %v", err)
		}
		if err := repo.CreateHand(record); !errors.Is(err, ErrHandAlreadyExists) {
			t.Fatalf("expected ErrHandAlreadyExists, got %v", err)
		}
	})

	t.Run("complete hand stores final state and awards", func(t *testing.T) {
		repo := newRepo(t)
		started := contractNow()
		if err := repo.CreateHand(HandRecord{HandID: "h1", TableID: "t1", HandNumber: 1, StartedAt: started, FinalPhase: domain.PhasePreflop}); err != nil {
			t.Fatalf("CreateHand failed: %v", err)
		}

		ended := started.Add(time.Minute)
		awards := []domain.PotAward{{Amount: 100, PlayerIDs: []string{"b"}, Reason: "main_pot"}}
		final := HandRecord{
			HandID:     "h1",
			TableID:    "t1",
			HandNumber: 1,
			StartedAt:  started,
			EndedAt:    &ended,
			FinalPhase: domain.PhaseComplete,
			FinalState: domain.GameState{
				HandID:         "h1",
				HandNumber:     1,
				Phase:          domain.PhaseComplete,
				Players:        []domain.Player{domain.NewPlayer("a", 0, 950), domain.NewPlayer("b", 1, 1050)},
				CommunityCards: domain.MustParseCards("Ah Kd 9s 4c 2h"),
				Awards:         awards,
			},
			Awards: awards,
		}
		if err := repo.CompleteHand("h1", final); err != nil {
			t.Fatalf("CompleteHand failed: %v", err)
		}

		hands, err := repo.ListHands("t1")
		if err != nil {
			t.Fatalf("ListHands failed: %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected one hand, got %d", len(hands))
		}
		got := hands[0]
		if got.FinalPhase != domain.PhaseComplete || got.EndedAt == nil || !got.EndedAt.Equal(ended) {
			t.Fatalf("unexpected completed hand %+v", got)
		}
		if got.FinalState.HandID != "h1" || len(got.FinalState.Players) != 2 || got.FinalState.Players[1].Chips != 1050 {
			t.Fatalf("unexpected final state %+v", got.FinalState)
		}
		if len(got.FinalState.CommunityCards) != 5 || got.FinalState.CommunityCards[0] != domain.MustParseCards("Ah")[0] {
			t.Fatalf("unexpected board %v", got.FinalState.CommunityCards)
		}
		if len(got.Awards) != 1 || got.Awards[0].Amount != 100 || got.Awards[0].PlayerIDs[0] != "b" {
			t.Fatalf("unexpected awards %+v", got.Awards)
		}
	})

	t.Run("complete missing hand", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.CompleteHand("missing", HandRecord{HandID: "missing", TableID: "t1", HandNumber: 1, StartedAt: contractNow()})
		if !errors.Is(err, ErrHandNotFound) {
			t.Fatalf("expected ErrHandNotFound, got %v", err)
		}
	})

	t.Run("actions keep insertion order", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		if err := repo.CreateHand(HandRecord{HandID: "h1", TableID: "t1", HandNumber: 1, StartedAt: now, FinalPhase: domain.PhasePreflop}); err != nil {
			t.Fatalf("CreateHand failed: %v", err)
		}

		want := []ActionRecord{
			{HandID: "h1", Sequence: 1, Phase: domain.PhasePreflop, PlayerID: "a", Action: domain.ActionRaise, Amount: 30, At: now},
			{HandID: "h1", Sequence: 2, Phase: domain.PhasePreflop, PlayerID: "b", Action: domain.ActionCall, Amount: 20, At: now.Add(time.Second)},
			{HandID: "h1", Sequence: 3, Phase: domain.PhaseFlop, PlayerID: "b", Action: domain.ActionFold, IsFallback: true, At: now.Add(2 * time.Second)},
		}
		for _, rec := range want {
			if err := repo.AppendAction(rec); err != nil {
				t.Fatalf("AppendAction %d failed: %v", rec.Sequence, err)
			}
		}

		got, err := repo.ListActions("h1")
		if err != nil {
			t.Fatalf("ListActions failed: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d actions, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i].Sequence != want[i].Sequence || got[i].Phase != want[i].Phase || got[i].PlayerID != want[i].PlayerID ||
				got[i].Action != want[i].Action || got[i].Amount != want[i].Amount || got[i].IsFallback != want[i].IsFallback ||
				!got[i].At.Equal(want[i].At) {
				t.Fatalf("action %d: expected %+v, got %+v", i, want[i], got[i])
			}
		}

		empty, err := repo.ListActions("unknown")
		if err != nil || len(empty) != 0 {
			t.Fatalf("expected no actions for unknown hand, got %v %v", empty, err)
		}
	})

	t.Run("append action requires existing hand", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.AppendAction(ActionRecord{HandID: "missing", Sequence: 1, Phase: domain.PhasePreflop, PlayerID: "a", Action: domain.ActionCheck, At: contractNow()})
		if !errors.Is(err, ErrHandNotFound) {
			t.Fatalf("expected ErrHandNotFound, got %v", err)
		}
	})
}

// contractNow is truncated to the millisecond precision the SQL stores keep.
func contractNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
