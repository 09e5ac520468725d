package store

import (
	"database/sql"
	"time"
)

// Event is one journal entry.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Seq       uint64    `json:"seq"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository provides access to journal events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Append inserts e and sets its ID.
func (r *EventRepository) Append(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO events (session_id, kind, seq, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, int64(e.Seq), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns up to limit events of a session, newest first.
func (r *EventRepository) ListBySession(sessionID string, limit int) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, seq, detail, created_at
		 FROM events WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var seq int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &seq, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByKind returns how many events of kind a session has.
func (r *EventRepository) CountByKind(sessionID, kind string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE session_id = ? AND kind = ?`,
		sessionID, kind,
	).Scan(&n)
	return n, err
}
