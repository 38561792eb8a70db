package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE call_records (
//   id               UUID PRIMARY KEY,
//   caller_id        TEXT NOT NULL,
//   callee_id        TEXT NOT NULL,
//   media            TEXT NOT NULL,
//   conversation_id  TEXT NOT NULL DEFAULT '',
//   status           TEXT NOT NULL,
//   duration_seconds INT  NOT NULL DEFAULT 0,
//   started_at       TIMESTAMPTZ,
//   ended_at         TIMESTAMPTZ,
//   created_at       TIMESTAMPTZ NOT NULL
// );
// CREATE INDEX call_records_caller_idx ON call_records (caller_id, created_at DESC);
// CREATE INDEX call_records_callee_idx ON call_records (callee_id, created_at DESC);

// PostgresRepo stores call history in Postgres via database/sql (pgx stdlib).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO call_records (
  id, caller_id, callee_id, media, conversation_id, status, duration_seconds, started_at, ended_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.CallerID,
		rec.CalleeID,
		string(rec.Media),
		rec.ConversationID,
		string(rec.Status),
		rec.DurationSeconds,
		nullTime(rec.StartedAt),
		rec.EndedAt,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) Patch(ctx context.Context, id string, p RecordPatch) error {
	const q = `
UPDATE call_records
SET status = $2,
    duration_seconds = $3,
    started_at = COALESCE($4, started_at),
    ended_at = $5
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		id,
		string(p.Status),
		p.DurationSeconds,
		nullTime(p.StartedAt),
		nullTime(p.EndedAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// The provisional insert may still be in flight or may have failed;
		// history is best-effort, so surface it as a normal not-found.
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	const q = `
SELECT id, caller_id, callee_id, media, conversation_id, status, duration_seconds, started_at, ended_at, created_at
FROM call_records
WHERE caller_id = $1 OR callee_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var media, status string
		var startedAt, endedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.CallerID,
			&rec.CalleeID,
			&media,
			&rec.ConversationID,
			&status,
			&rec.DurationSeconds,
			&startedAt,
			&endedAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Media = MediaKind(media)
		rec.Status = RecordStatus(status)
		if startedAt.Valid {
			rec.StartedAt = startedAt.Time
		}
		if endedAt.Valid {
			t := endedAt.Time
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
