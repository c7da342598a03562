// Package ledger provides an append-only history of reconciliation outcomes.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/unictl/internal/reconcile"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventChanged   EventType = "changed"
	EventUnchanged EventType = "unchanged"
	EventFailed    EventType = "failed"
)

// Entry represents a single reconciliation in the ledger
type Entry struct {
	ID           int64           `json:"id"`
	RunID        string          `json:"run_id"`
	EventType    EventType       `json:"event"`
	Timestamp    time.Time       `json:"timestamp"`
	Kind         reconcile.Kind  `json:"kind"`
	SymmID       string          `json:"symm_id"`
	ResourceID   string          `json:"resource_id"`
	DesiredState reconcile.State `json:"state"`
	Action       string          `json:"action"`
	Error        string          `json:"error,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// Ledger stores outcomes for one run and reads back history.
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// New creates a new Ledger using the provided database connection.
// runID tags every entry appended through Record.
func New(db *sql.DB, runID string) *Ledger {
	return &Ledger{db: db, runID: runID, now: time.Now}
}

// Record appends an outcome. It satisfies reconcile.Recorder; a failed
// write is logged and never fails the run.
func (l *Ledger) Record(ctx context.Context, outcome reconcile.Outcome) {
	if err := l.Append(ctx, outcome); err != nil {
		log.Warn().Err(err).Str("resource", outcome.Key.String()).Msg("Failed to record outcome")
	}
}

// Append adds an outcome to the ledger.
func (l *Ledger) Append(ctx context.Context, outcome reconcile.Outcome) error {
	eventType := EventUnchanged
	var errText sql.NullString
	switch {
	case outcome.Err != nil:
		eventType = EventFailed
		errText = sql.NullString{String: outcome.Err.Error(), Valid: true}
	case outcome.Result.Changed:
		eventType = EventChanged
	}

	payload, err := json.Marshal(outcome.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO reconcile_ledger
			(run_id, event_type, timestamp, kind, symm_id, resource_id, desired_state, action, error, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.runID, string(eventType), l.now().UTC().Unix(),
		string(outcome.Key.Kind), outcome.Key.SymmID, outcome.Key.ID,
		string(outcome.Result.State), outcome.Action.String(), errText, string(payload),
	)
	return err
}

// Recent returns the latest entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, event_type, timestamp, kind, symm_id, resource_id, desired_state, action, error, payload
		FROM reconcile_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.ExecContext(ctx, `DELETE FROM reconcile_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var errText, payload sql.NullString
		var timestamp int64
		var eventType, kind, state string

		err := rows.Scan(
			&entry.ID, &entry.RunID, &eventType, &timestamp, &kind,
			&entry.SymmID, &entry.ResourceID, &state, &entry.Action, &errText, &payload,
		)
		if err != nil {
			return nil, err
		}

		entry.EventType = EventType(eventType)
		entry.Kind = reconcile.Kind(kind)
		entry.DesiredState = reconcile.State(state)
		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if errText.Valid {
			entry.Error = errText.String
		}
		if payload.Valid && payload.String != "" {
			entry.Result = json.RawMessage(payload.String)
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
