package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/flemzord/chaingate/internal/memory"
)

// Store implements memory.Store on a SQLite table. Insertion order is the
// autoincrement sequence.
type Store struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ memory.Store     = (*Store)(nil)
	_ memory.Compactor = (*Store)(nil)
)

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save appends a record.
func (s *Store) Save(ctx context.Context, agentID string, rec memory.Record) error {
	if agentID == "" {
		return memory.ErrEmptyAgentID
	}
	stamp := rec.Timestamp.IsZero()
	rec = memory.Prepare(rec)

	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("sqlite: marshal params: %w", err)
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("sqlite: marshal result: %w", err)
	}
	var errJSON sql.NullString
	if rec.Error != nil {
		raw, err := json.Marshal(rec.Error)
		if err != nil {
			return fmt.Errorf("sqlite: marshal error: %w", err)
		}
		errJSON = sql.NullString{String: string(raw), Valid: true}
	}

	// The pool has one connection, so the transaction serializes saves and
	// the stamp below follows insertion order.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if stamp {
		if rec.Timestamp, err = stampAfterLast(ctx, tx, agentID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, agent_id, kind, tool, params, result, error, timestamp, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, agentID, string(rec.Kind), rec.Tool,
		string(params), string(result), errJSON,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit record: %w", err)
	}
	return nil
}

// stampAfterLast returns now, or the agent's newest timestamp when the
// clock has stepped back past it.
func stampAfterLast(ctx context.Context, tx *sql.Tx, agentID string) (time.Time, error) {
	now := time.Now().UTC()
	var last string
	err := tx.QueryRowContext(ctx,
		`SELECT timestamp FROM records WHERE agent_id = ? ORDER BY seq DESC LIMIT 1`, agentID).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return now, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("sqlite: read last timestamp: %w", err)
	}
	prev, err := time.Parse(time.RFC3339Nano, last)
	if err == nil && now.Before(prev) {
		return prev, nil
	}
	return now, nil
}

// Get returns the newest limit records for an agent, oldest first.
func (s *Store) Get(ctx context.Context, agentID string, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, tool, params, result, error, timestamp, duration_ms
		FROM records
		WHERE agent_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recs := []memory.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get records rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(recs)
	return recs, nil
}

// Agents returns every agent with stored records.
func (s *Store) Agents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT agent_id FROM records ORDER BY agent_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan agent: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Compact deletes each agent's records beyond the newest maxPerAgent.
func (s *Store) Compact(ctx context.Context, maxPerAgent int) (int, error) {
	if maxPerAgent <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY agent_id ORDER BY seq DESC) AS rn
				FROM records
			) WHERE rn > ?
		)`, maxPerAgent)
	if err != nil {
		return 0, fmt.Errorf("sqlite: compact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (memory.Record, error) {
	var (
		rec        memory.Record
		kind       string
		paramsJSON string
		resultJSON string
		errJSON    sql.NullString
		ts         string
	)

	if err := sc.Scan(&rec.ID, &kind, &rec.Tool, &paramsJSON, &resultJSON, &errJSON, &ts, &rec.DurationMS); err != nil {
		return rec, fmt.Errorf("sqlite: scan record: %w", err)
	}
	rec.Kind = memory.Kind(kind)

	if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
		return rec, fmt.Errorf("sqlite: unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return rec, fmt.Errorf("sqlite: unmarshal result: %w", err)
	}
	if errJSON.Valid {
		rec.Error = &memory.ErrorInfo{}
		if err := json.Unmarshal([]byte(errJSON.String), rec.Error); err != nil {
			return rec, fmt.Errorf("sqlite: unmarshal error: %w", err)
		}
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return rec, fmt.Errorf("sqlite: parse timestamp %q: %w", ts, err)
	}
	rec.Timestamp = t
	return rec, nil
}
