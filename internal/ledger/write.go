package ledger

import (
	"context"
	"fmt"
	"time"
)

// Session statuses.
const (
	StatusOpen     = "open"
	StatusReported = "reported"
	StatusAborted  = "aborted"
)

// RunRecord is one run folded into a session.
type RunRecord struct {
	SessionID  string
	InputIndex int
	Input      string

	// Observed is the number of distinct fences the run reported.
	Observed int

	// Confirmed is the size of the confirmed set after the fold.
	Confirmed int

	ExitCode int
	Duration time.Duration
	Seq      int64
}

// DropRecord is one fence removed from a session's confirmed set.
type DropRecord struct {
	SessionID  string
	InputIndex int
	Fence      int64
	Seq        int64
}

// OpenSession registers a kernel session.
func (l *Ledger) OpenSession(ctx context.Context, id, kernel string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (id, kernel, status, seq)
		VALUES (?, ?, ?, ?)
	`, id, kernel, StatusOpen, l.clock.next())
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// RecordRun appends a run to its session's trail.
func (l *Ledger) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs
		(session_id, input_index, input, observed, confirmed, exit_code, duration_ms, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.SessionID,
		rec.InputIndex,
		rec.Input,
		rec.Observed,
		rec.Confirmed,
		rec.ExitCode,
		rec.Duration.Milliseconds(),
		l.clock.next(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecordDrops records the fences a run removed, atomically.
// A fence can only be dropped once per session.
func (l *Ledger) RecordDrops(ctx context.Context, sessionID string, inputIndex int, fences []int64) error {
	if len(fences) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record drops: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, fence := range fences {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO drops (session_id, input_index, fence, seq)
			VALUES (?, ?, ?, ?)
		`, sessionID, inputIndex, fence, l.clock.next()); err != nil {
			return fmt.Errorf("record drops: fence %d: %w", fence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record drops: commit: %w", err)
	}
	return nil
}

// CloseSession sets the final status of a session.
func (l *Ledger) CloseSession(ctx context.Context, id, status string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE sessions SET status = ? WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("close session: unknown session %q", id)
	}
	return nil
}

// Discard deletes a session and its trail.
func (l *Ledger) Discard(ctx context.Context, id string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}
