package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/imaddar/holdem-engine/internal/domain"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// sqlRepository stores hand history in Postgres or SQLite. Queries are
// written with ? placeholders and rebound for Postgres.
type sqlRepository struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db, dialect: dialectPostgres, now: time.Now}
}

func (r *sqlRepository) UpsertTableRun(record TableRunRecord) error {
	const q = `
INSERT INTO table_runs (
  table_id, status, started_at_ms, ended_at_ms, error, hands_requested, hands_completed, total_actions, total_fallbacks, current_hand_no, updated_at_ms
) VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (table_id) DO UPDATE SET
  status = excluded.status,
  started_at_ms = excluded.started_at_ms,
  ended_at_ms = excluded.ended_at_ms,
  error = excluded.error,
  hands_requested = excluded.hands_requested,
  hands_completed = excluded.hands_completed,
  total_actions = excluded.total_actions,
  total_fallbacks = excluded.total_fallbacks,
  current_hand_no = excluded.current_hand_no,
  updated_at_ms = excluded.updated_at_ms
`
	_, err := r.exec(q,
		record.TableID,
		string(record.Status),
		toMillis(record.StartedAt),
		nullMillis(record.EndedAt),
		record.Error,
		record.HandsRequested,
		record.HandsCompleted,
		record.TotalActions,
		record.TotalFallbacks,
		int64(record.CurrentHandNo),
		toMillis(r.now()),
	)
	return err
}

func (r *sqlRepository) GetTableRun(tableID string) (TableRunRecord, bool, error) {
	const q = `
SELECT table_id, status, started_at_ms, ended_at_ms, error, hands_requested, hands_completed, total_actions, total_fallbacks, current_hand_no
FROM table_runs
WHERE table_id = ?
`
	var (
		out       TableRunRecord
		status    string
		startedAt int64
		endedAt   sql.NullInt64
		handNo    int64
	)
	err := r.db.QueryRowContext(context.Background(), r.rebind(q), tableID).Scan(
		&out.TableID,
		&status,
		&startedAt,
		&endedAt,
		&out.Error,
		&out.HandsRequested,
		&out.HandsCompleted,
		&out.TotalActions,
		&out.TotalFallbacks,
		&handNo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TableRunRecord{}, false, nil
	}
	if err != nil {
		return TableRunRecord{}, false, err
	}
	out.Status = TableRunStatus(status)
	out.StartedAt = fromMillis(startedAt)
	out.EndedAt = fromNullMillis(endedAt)
	out.CurrentHandNo = uint64(handNo)
	return out, true, nil
}

func (r *sqlRepository) CreateHand(record HandRecord) error {
	finalState, awards, err := marshalHand(record)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO hands (
  hand_id, table_id, hand_number, started_at_ms, ended_at_ms, final_phase, final_state, awards
) VALUES (?,?,?,?,?,?,?,?)
`
	_, err = r.exec(q,
		record.HandID,
		record.TableID,
		int64(record.HandNumber),
		toMillis(record.StartedAt),
		nullMillis(record.EndedAt),
		string(record.FinalPhase),
		finalState,
		awards,
	)
	if r.isUniqueViolation(err) {
		return ErrHandAlreadyExists
	}
	return err
}

func (r *sqlRepository) CompleteHand(handID string, final HandRecord) error {
	finalState, awards, err := marshalHand(final)
	if err != nil {
		return err
	}
	const q = `
UPDATE hands
SET table_id = ?, hand_number = ?, started_at_ms = ?, ended_at_ms = ?, final_phase = ?, final_state = ?, awards = ?
WHERE hand_id = ?
`
	result, err := r.exec(q,
		final.TableID,
		int64(final.HandNumber),
		toMillis(final.StartedAt),
		nullMillis(final.EndedAt),
		string(final.FinalPhase),
		finalState,
		awards,
		handID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrHandNotFound
	}
	return nil
}

func (r *sqlRepository) AppendAction(record ActionRecord) error {
	const q = `
INSERT INTO actions (
  hand_id, seq, phase, player_id, action, amount, is_fallback, at_ms
) VALUES (?,?,?,?,?,?,?,?)
`
	_, err := r.exec(q,
		record.HandID,
		record.Sequence,
		string(record.Phase),
		record.PlayerID,
		string(record.Action),
		int64(record.Amount),
		record.IsFallback,
		toMillis(record.At),
	)
	if r.isForeignKeyViolation(err) {
		return ErrHandNotFound
	}
	return err
}

func (r *sqlRepository) ListHands(tableID string) ([]HandRecord, error) {
	const q = `
SELECT hand_id, table_id, hand_number, started_at_ms, ended_at_ms, final_phase, final_state, awards
FROM hands
WHERE table_id = ?
ORDER BY hand_number ASC, hand_id ASC
`
	rows, err := r.db.QueryContext(context.Background(), r.rebind(q), tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HandRecord, 0, 32)
	for rows.Next() {
		var (
			rec           HandRecord
			handNumber    int64
			startedAt     int64
			endedAt       sql.NullInt64
			finalPhase    string
			finalStateRaw []byte
			awardsRaw     []byte
		)
		if err := rows.Scan(
			&rec.HandID,
			&rec.TableID,
			&handNumber,
			&startedAt,
			&endedAt,
			&finalPhase,
			&finalStateRaw,
			&awardsRaw,
		); err != nil {
			return nil, err
		}
		rec.HandNumber = uint64(handNumber)
		rec.StartedAt = fromMillis(startedAt)
		rec.EndedAt = fromNullMillis(endedAt)
		rec.FinalPhase = domain.Phase(finalPhase)
		if len(finalStateRaw) > 0 {
			if err := json.Unmarshal(finalStateRaw, &rec.FinalState); err != nil {
				return nil, fmt.Errorf("unmarshal final_state for hand %s: %w", rec.HandID, err)
			}
		}
		if len(awardsRaw) > 0 {
			if err := json.Unmarshal(awardsRaw, &rec.Awards); err != nil {
				return nil, fmt.Errorf("unmarshal awards for hand %s: %w", rec.HandID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sqlRepository) ListActions(handID string) ([]ActionRecord, error) {
	const q = `
SELECT hand_id, seq, phase, player_id, action, amount, is_fallback, at_ms
FROM actions
WHERE hand_id = ?
ORDER BY id ASC
`
	rows, err := r.db.QueryContext(context.Background(), r.rebind(q), handID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ActionRecord, 0, 64)
	for rows.Next() {
		var (
			rec    ActionRecord
			phase  string
			action string
			amount int64
			at     int64
		)
		if err := rows.Scan(
			&rec.HandID,
			&rec.Sequence,
			&phase,
			&rec.PlayerID,
			&action,
			&amount,
			&rec.IsFallback,
			&at,
		); err != nil {
			return nil, err
		}
		rec.Phase = domain.Phase(phase)
		rec.Action = domain.ActionType(action)
		rec.Amount = uint32(amount)
		rec.At = fromMillis(at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sqlRepository) exec(query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(context.Background(), r.rebind(query), args...)
}

// rebind turns ? placeholders into $n for Postgres.
func (r *sqlRepository) rebind(query string) string {
	if r.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *sqlRepository) isUniqueViolation(err error) bool {
	if r.dialect == dialectSQLite {
		return hasSQLiteConstraint(err, "UNIQUE constraint failed")
	}
	return hasSQLState(err, "23505")
}

func (r *sqlRepository) isForeignKeyViolation(err error) bool {
	if r.dialect == dialectSQLite {
		return hasSQLiteConstraint(err, "FOREIGN KEY constraint failed")
	}
	return hasSQLState(err, "23503")
}

func hasSQLState(err error, code string) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	// Fallback for wrapped drivers that only surface SQLSTATE in error text.
	return strings.Contains(err.Error(), "SQLSTATE "+code)
}

func marshalHand(record HandRecord) (string, string, error) {
	finalState, err := json.Marshal(record.FinalState)
	if err != nil {
		return "", "", fmt.Errorf("marshal final state: %w", err)
	}
	awards, err := json.Marshal(record.Awards)
	if err != nil {
		return "", "", fmt.Errorf("marshal awards: %w", err)
	}
	return string(finalState), string(awards), nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t
}
