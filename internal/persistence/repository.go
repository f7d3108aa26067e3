package persistence

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/imaddar/holdem-engine/internal/domain"
)

var (
	ErrTableRunNotFound  = errors.New("table run not found")
	ErrHandNotFound      = errors.New("hand not found")
	ErrHandAlreadyExists = errors.New("hand already exists")
)

type TableRunStatus string

const (
	TableRunStatusRunning   TableRunStatus = "running"
	TableRunStatusStopped   TableRunStatus = "stopped"
	TableRunStatusFailed    TableRunStatus = "failed"
	TableRunStatusCompleted TableRunStatus = "completed"
)

type HandRecord struct {
	HandID     string
	TableID    string
	HandNumber uint64
	StartedAt  time.Time
	EndedAt    *time.Time
	FinalPhase domain.Phase
	FinalState domain.GameState
	Awards     []domain.PotAward
}

// ActionRecord is one entry of a hand's timeline. Amount is the number of
// chips the action committed.
type ActionRecord struct {
	HandID     string
	Sequence   int
	Phase      domain.Phase
	PlayerID   string
	Action     domain.ActionType
	Amount     uint32
	IsFallback bool
	At         time.Time
}

type TableRunRecord struct {
	TableID        string
	Status         TableRunStatus
	StartedAt      time.Time
	EndedAt        *time.Time
	Error          string
	HandsRequested int
	HandsCompleted int
	TotalActions   int
	TotalFallbacks int
	CurrentHandNo  uint64
}

type Repository interface {
	UpsertTableRun(record TableRunRecord) error
	GetTableRun(tableID string) (TableRunRecord, bool, error)
	CreateHand(record HandRecord) error
	CompleteHand(handID string, final HandRecord) error
	AppendAction(record ActionRecord) error
	ListHands(tableID string) ([]HandRecord, error)
	ListActions(handID string) ([]ActionRecord, error)
}

type inMemoryRepository struct {
	mu sync.RWMutex

	tableRuns map[string]TableRunRecord
	hands     map[string]HandRecord
	actions   map[string][]ActionRecord
}

func NewInMemoryRepository() Repository {
	return &inMemoryRepository{
		tableRuns: make(map[string]TableRunRecord),
		hands:     make(map[string]HandRecord),
		actions:   make(map[string][]ActionRecord),
	}
}

func (r *inMemoryRepository) UpsertTableRun(record TableRunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tableRuns[record.TableID] = cloneTableRunRecord(record)
	return nil
}

func (r *inMemoryRepository) GetTableRun(tableID string) (TableRunRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.tableRuns[tableID]
	if !ok {
		return TableRunRecord{}, false, nil
	}
	return cloneTableRunRecord(record), true, nil
}

func (r *inMemoryRepository) CreateHand(record HandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hands[record.HandID]; exists {
		return ErrHandAlreadyExists
	}
	r.hands[record.HandID] = cloneHandRecord(record)
	return nil
}

func (r *inMemoryRepository) CompleteHand(handID string, final HandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hands[handID]; !exists {
		return ErrHandNotFound
	}
	record := cloneHandRecord(final)
	record.HandID = handID
	r.hands[handID] = record
	return nil
}

func (r *inMemoryRepository) AppendAction(record ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hands[record.HandID]; !exists {
		return ErrHandNotFound
	}
	r.actions[record.HandID] = append(r.actions[record.HandID], record)
	return nil
}

func (r *inMemoryRepository) ListHands(tableID string) ([]HandRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hands := make([]HandRecord, 0, len(r.hands))
	for _, record := range r.hands {
		if record.TableID != tableID {
			continue
		}
		hands = append(hands, cloneHandRecord(record))
	}
	sort.Slice(hands, func(i, j int) bool {
		if hands[i].HandNumber == hands[j].HandNumber {
			return hands[i].HandID < hands[j].HandID
		}
		return hands[i].HandNumber < hands[j].HandNumber
	})
	return hands, nil
}

func (r *inMemoryRepository) ListActions(handID string) ([]ActionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ActionRecord{}, r.actions[handID]...), nil
}

func cloneTableRunRecord(record TableRunRecord) TableRunRecord {
	out := record
	if record.EndedAt != nil {
		endedAt := *record.EndedAt
		out.EndedAt = &endedAt
	}
	return out
}

func cloneHandRecord(record HandRecord) HandRecord {
	out := record
	out.FinalState = record.FinalState.Clone()
	out.Awards = clonePotAwards(record.Awards)
	if record.EndedAt != nil {
		endedAt := *record.EndedAt
		out.EndedAt = &endedAt
	}
	return out
}

func clonePotAwards(awards []domain.PotAward) []domain.PotAward {
	if len(awards) == 0 {
		return nil
	}
	out := make([]domain.PotAward, 0, len(awards))
	for _, award := range awards {
		cloned := award
		cloned.PlayerIDs = append([]string(nil), award.PlayerIDs...)
		out = append(out, cloned)
	}
	return out
}
