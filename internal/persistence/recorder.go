package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/tablerunner"
)

// Recorder writes a table's hand history to a Repository through the
// runner's hooks. Hooks cannot fail, so the first write error is kept and
// reported by Err and Finish.
type Recorder struct {
	repo    Repository
	tableID string
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	run   TableRunRecord
	hands map[string]time.Time
	err   error
}

func NewRecorder(repo Repository, tableID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:    repo,
		tableID: tableID,
		now:     time.Now,
		logger:  logger,
		hands:   make(map[string]time.Time),
	}
}

// Attach returns config with the recorder's hooks chained after any hooks
// already set.
func (r *Recorder) Attach(config tablerunner.RunnerConfig) tablerunner.RunnerConfig {
	onStart, onAction, onComplete := config.OnHandStart, config.OnAction, config.OnHandComplete
	config.OnHandStart = func(state domain.GameState) {
		r.HandStarted(state)
		if onStart != nil {
			onStart(state)
		}
	}
	config.OnAction = func(event tablerunner.ActionEvent) {
		r.ActionApplied(event)
		if onAction != nil {
			onAction(event)
		}
	}
	config.OnHandComplete = func(summary tablerunner.HandSummary) {
		r.HandCompleted(summary)
		if onComplete != nil {
			onComplete(summary)
		}
	}
	return config
}

// Begin marks the table run as running.
func (r *Recorder) Begin(handsRequested int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = TableRunRecord{
		TableID:        r.tableID,
		Status:         TableRunStatusRunning,
		StartedAt:      r.now().UTC(),
		HandsRequested: handsRequested,
	}
	return r.record(r.repo.UpsertTableRun(r.run))
}

func (r *Recorder) HandStarted(state domain.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	startedAt := r.now().UTC()
	r.hands[state.HandID] = startedAt
	r.run.CurrentHandNo = state.HandNumber
	r.record(r.repo.CreateHand(HandRecord{
		HandID:     state.HandID,
		TableID:    r.tableID,
		HandNumber: state.HandNumber,
		StartedAt:  startedAt,
		FinalPhase: state.Phase,
		FinalState: state,
	}))
}

func (r *Recorder) ActionApplied(event tablerunner.ActionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := event.Action.Timestamp
	if at.IsZero() {
		at = r.now()
	}
	r.record(r.repo.AppendAction(ActionRecord{
		HandID:     event.HandID,
		Sequence:   event.Sequence,
		Phase:      event.Phase,
		PlayerID:   event.Action.PlayerID,
		Action:     event.Action.Type,
		Amount:     event.Action.Amount,
		IsFallback: event.Fallback,
		At:         at.UTC(),
	}))
}

func (r *Recorder) HandCompleted(summary tablerunner.HandSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	endedAt := r.now().UTC()
	startedAt, ok := r.hands[summary.HandID]
	if !ok {
		startedAt = endedAt
	}
	delete(r.hands, summary.HandID)

	r.record(r.repo.CompleteHand(summary.HandID, HandRecord{
		HandID:     summary.HandID,
		TableID:    r.tableID,
		HandNumber: summary.HandNumber,
		StartedAt:  startedAt,
		EndedAt:    &endedAt,
		FinalPhase: summary.FinalPhase,
		FinalState: summary.FinalState,
		Awards:     summary.FinalState.Awards,
	}))

	r.run.HandsCompleted++
	r.run.TotalActions += summary.ActionCount
	r.run.TotalFallbacks += summary.FallbackCount
	r.record(r.repo.UpsertTableRun(r.run))
}

// Finish closes the table run as completed, or failed when runErr is set,
// and returns the first error seen while recording.
func (r *Recorder) Finish(runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	endedAt := r.now().UTC()
	r.run.EndedAt = &endedAt
	r.run.Status = TableRunStatusCompleted
	switch {
	case errors.Is(runErr, tablerunner.ErrContextCancelled):
		r.run.Status = TableRunStatusStopped
		r.run.Error = runErr.Error()
	case runErr != nil:
		r.run.Status = TableRunStatusFailed
		r.run.Error = runErr.Error()
	}
	r.record(r.repo.UpsertTableRun(r.run))
	return r.err
}

// Err returns the first error seen while recording.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// record must be called with mu held.
func (r *Recorder) record(err error) error {
	if err == nil {
		return nil
	}
	r.logger.Error("hand history write failed", "table_id", r.tableID, "error", err)
	if r.err == nil {
		r.err = fmt.Errorf("record table %s: %w", r.tableID, err)
	}
	return err
}
