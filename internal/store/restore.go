package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/playback"
)

// RestorePoint is everything needed to resume after a restart.
type RestorePoint struct {
	Playback playback.Checkpoint
	Aux      []auxtimer.Checkpoint
	Message  message.State
	SavedAt  time.Time
}

// Save replaces the stored restore point in a single transaction.
func (s *Store) Save(ctx context.Context, rp RestorePoint) error {
	msgJSON, err := json.Marshal(rp.Message)
	if err != nil {
		return fmt.Errorf("save restore point: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save restore point: %w", err)
	}
	defer tx.Rollback()

	cp := rp.Playback
	_, err = tx.ExecContext(ctx, `
		INSERT INTO restore_point
		(id, phase, cue_id, added_time, accumulated, run_start, started_at, finished_at, actual_start, offset_mode, message, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			cue_id = excluded.cue_id,
			added_time = excluded.added_time,
			accumulated = excluded.accumulated,
			run_start = excluded.run_start,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			actual_start = excluded.actual_start,
			offset_mode = excluded.offset_mode,
			message = excluded.message,
			saved_at = excluded.saved_at
	`,
		string(cp.Phase),
		cp.CueID,
		cp.AddedTime,
		cp.Accumulated,
		cp.RunStart,
		cp.StartedAt,
		cp.FinishedAt,
		cp.ActualStart,
		string(cp.OffsetMode),
		string(msgJSON),
		rp.SavedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save restore point: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM aux_timers`); err != nil {
		return fmt.Errorf("save aux timers: %w", err)
	}
	for _, a := range rp.Aux {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO aux_timers (id, direction, playback, duration, accumulated, run_start)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.ID, string(a.Direction), string(a.Playback), a.Duration, a.Accumulated, a.RunStart)
		if err != nil {
			return fmt.Errorf("save aux timer %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save restore point: %w", err)
	}
	return nil
}

// Load reads the stored restore point. ok is false when none was saved.
func (s *Store) Load(ctx context.Context) (rp RestorePoint, ok bool, err error) {
	var (
		phase, mode, msgJSON string
		savedAt              int64
	)
	cp := &rp.Playback
	err = s.db.QueryRowContext(ctx, `
		SELECT phase, cue_id, added_time, accumulated, run_start, started_at,
		       finished_at, actual_start, offset_mode, message, saved_at
		FROM restore_point WHERE id = 1
	`).Scan(
		&phase,
		&cp.CueID,
		&cp.AddedTime,
		&cp.Accumulated,
		&cp.RunStart,
		&cp.StartedAt,
		&cp.FinishedAt,
		&cp.ActualStart,
		&mode,
		&msgJSON,
		&savedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RestorePoint{}, false, nil
	}
	if err != nil {
		return RestorePoint{}, false, fmt.Errorf("load restore point: %w", err)
	}
	cp.Phase = playback.Phase(phase)
	cp.OffsetMode = playback.OffsetMode(mode)
	rp.SavedAt = time.UnixMilli(savedAt)
	if err := json.Unmarshal([]byte(msgJSON), &rp.Message); err != nil {
		return RestorePoint{}, false, fmt.Errorf("load restore point message: %w", err)
	}

	rp.Aux, err = s.loadAux(ctx)
	if err != nil {
		return RestorePoint{}, false, err
	}
	return rp, true, nil
}

func (s *Store) loadAux(ctx context.Context) ([]auxtimer.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, playback, duration, accumulated, run_start
		FROM aux_timers ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load aux timers: %w", err)
	}
	defer rows.Close()

	var out []auxtimer.Checkpoint
	for rows.Next() {
		var (
			a              auxtimer.Checkpoint
			direction, pbk string
		)
		if err := rows.Scan(&a.ID, &direction, &pbk, &a.Duration, &a.Accumulated, &a.RunStart); err != nil {
			return nil, fmt.Errorf("scan aux timer: %w", err)
		}
		a.Direction = auxtimer.Direction(direction)
		a.Playback = auxtimer.Playback(pbk)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load aux timers: %w", err)
	}
	return out, nil
}

// Clear removes the restore point.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM restore_point`); err != nil {
		return fmt.Errorf("clear restore point: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM aux_timers`); err != nil {
		return fmt.Errorf("clear aux timers: %w", err)
	}
	return nil
}
