package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventRecord is one row of the events table
type EventRecord struct {
	ID          int64
	RunID       string
	Sequence    int
	EventType   string
	Stage       *string
	PayloadJSON *string
	Error       *string
	CreatedAt   time.Time
}

// AppendEvent records a new event with an auto-assigned sequence number.
// The sequence number is calculated within a transaction to avoid races.
// Payload is JSON-serialized if non-nil.
func (db *DB) AppendEvent(runID, eventType, stage string, payload any, errMsg string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sequence, err := nextSequence(tx, runID)
	if err != nil {
		return err
	}

	var payloadJSON *string
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to serialize payload: %w", err)
		}
		jsonStr := string(jsonBytes)
		payloadJSON = &jsonStr
	}

	query := `
		INSERT INTO events (run_id, sequence, event_type, stage, payload_json, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query, runID, sequence, eventType, nullable(stage), payloadJSON, nullable(errMsg))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func nextSequence(tx *sql.Tx, runID string) (int, error) {
	var next int
	err := tx.QueryRow(`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE run_id = ?`, runID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to get next sequence: %w", err)
	}
	return next, nil
}

// ListEvents returns all events for a run in sequence order.
func (db *DB) ListEvents(runID string) ([]*EventRecord, error) {
	query := `
		SELECT id, run_id, sequence, event_type, stage, payload_json, error, created_at
		FROM events
		WHERE run_id = ?
		ORDER BY sequence
	`

	rows, err := db.conn.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		event := &EventRecord{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Sequence,
			&event.EventType,
			&event.Stage,
			&event.PayloadJSON,
			&event.Error,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
