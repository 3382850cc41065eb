package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// SessionRecord is the header row of a session.
type SessionRecord struct {
	ID     string
	Kernel string
	Status string
	Seq    int64
}

// Session returns a session's header row.
func (l *Ledger) Session(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	err := l.db.QueryRowContext(ctx, `
		SELECT id, kernel, status, seq FROM sessions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Kernel, &rec.Status, &rec.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("read session: %w", err)
	}
	return rec, nil
}

// Runs returns a session's runs in the order they were recorded.
func (l *Ledger) Runs(ctx context.Context, sessionID string) ([]RunRecord, error) {
	var runs []RunRecord
	err := l.query(ctx, func(rows *sql.Rows) error {
		var (
			rec RunRecord
			ms  int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.InputIndex, &rec.Input, &rec.Observed,
			&rec.Confirmed, &rec.ExitCode, &ms, &rec.Seq); err != nil {
			return err
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, rec)
		return nil
	}, `
		SELECT session_id, input_index, input, observed, confirmed, exit_code, duration_ms, seq
		FROM runs
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return runs, nil
}

// Drops returns a session's dropped fences, in drop order and ascending
// fence within one run.
func (l *Ledger) Drops(ctx context.Context, sessionID string) ([]DropRecord, error) {
	var drops []DropRecord
	err := l.query(ctx, func(rows *sql.Rows) error {
		var rec DropRecord
		if err := rows.Scan(&rec.SessionID, &rec.InputIndex, &rec.Fence, &rec.Seq); err != nil {
			return err
		}
		drops = append(drops, rec)
		return nil
	}, `
		SELECT session_id, input_index, fence, seq
		FROM drops
		WHERE session_id = ?
		ORDER BY seq ASC, fence ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read drops: %w", err)
	}
	return drops, nil
}
