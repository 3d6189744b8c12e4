package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// RecordedFrame is one landmark frame of a session. Hands holds the JSON
// encoding of the detected hands.
type RecordedFrame struct {
	Seq         int64           `json:"seq"`
	TimestampMs int64           `json:"timestamp_ms"`
	Hands       json.RawMessage `json:"hands"`
}

// RecordedEvent is one gesture event of a session.
type RecordedEvent struct {
	Seq         int64           `json:"seq"`
	TimestampMs int64           `json:"timestamp_ms"`
	Type        string          `json:"type"`
	State       string          `json:"state"`
	Hand        string          `json:"hand"`
	Data        json.RawMessage `json:"data"`
}

// FrameRepository stores the frames of sessions.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// AppendBatch inserts frames for a session in one transaction and bumps the
// session's frame count.
func (r *FrameRepository) AppendBatch(sessionID string, frames []RecordedFrame) error {
	if len(frames) == 0 {
		return nil
	}

	return inTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO session_frames (session_id, seq, timestamp_ms, hands) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range frames {
			hands := f.Hands
			if len(hands) == 0 {
				hands = json.RawMessage("[]")
			}
			if _, err := stmt.Exec(sessionID, f.Seq, f.TimestampMs, string(hands)); err != nil {
				return fmt.Errorf("insert frame %d: %w", f.Seq, err)
			}
		}

		return bumpCount(tx, sessionID, "frames", len(frames))
	})
}

// List returns the frames of a session in sequence order.
func (r *FrameRepository) List(sessionID string) ([]RecordedFrame, error) {
	rows, err := r.db.Query(
		`SELECT seq, timestamp_ms, hands FROM session_frames
		 WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []RecordedFrame
	for rows.Next() {
		var f RecordedFrame
		var hands string
		if err := rows.Scan(&f.Seq, &f.TimestampMs, &hands); err != nil {
			return nil, err
		}
		f.Hands = json.RawMessage(hands)
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// EventRepository stores the gesture events of sessions.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// AppendBatch inserts events for a session in one transaction and bumps the
// session's event count.
func (r *EventRepository) AppendBatch(sessionID string, events []RecordedEvent) error {
	if len(events) == 0 {
		return nil
	}

	return inTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO session_events (session_id, seq, timestamp_ms, type, state, hand, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range events {
			data := e.Data
			if len(data) == 0 {
				data = json.RawMessage("{}")
			}
			if _, err := stmt.Exec(sessionID, e.Seq, e.TimestampMs, e.Type, e.State, e.Hand, string(data)); err != nil {
				return fmt.Errorf("insert event %d: %w", e.Seq, err)
			}
		}

		return bumpCount(tx, sessionID, "events", len(events))
	})
}

// List returns the events of a session in sequence order.
func (r *EventRepository) List(sessionID string) ([]RecordedEvent, error) {
	rows, err := r.db.Query(
		`SELECT seq, timestamp_ms, type, state, hand, data FROM session_events
		 WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RecordedEvent
	for rows.Next() {
		var e RecordedEvent
		var data string
		if err := rows.Scan(&e.Seq, &e.TimestampMs, &e.Type, &e.State, &e.Hand, &data); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountByType returns how many events of each gesture type a session holds,
// counting only the given state when state is non-empty.
func (r *EventRepository) CountByType(sessionID, state string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT type, COUNT(*) FROM session_events
		 WHERE session_id = ? AND (? = '' OR state = ?)
		 GROUP BY type ORDER BY type`,
		sessionID, state, state,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}

	return counts, rows.Err()
}

func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// bumpCount adds n to a counter column of a session. column is always one of
// the fixed names used in this file.
func bumpCount(tx *sql.Tx, sessionID, column string, n int) error {
	result, err := tx.Exec(`UPDATE sessions SET `+column+` = `+column+` + ? WHERE id = ?`, n, sessionID)
	if err != nil {
		return err
	}
	return requireRow(result)
}
