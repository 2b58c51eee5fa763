package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/database"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
)

// EventRepository handles database operations for traffic events and votes.
// The service layer keeps the hot working set in memory; this repository is
// the durable record that survives restarts.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, type, severity, lat, lng, address, description,
	reporter_id, created_at, expires_at, upvotes, downvotes, confidence_score`

// Create inserts a new traffic event.
func (r *EventRepository) Create(e *models.TrafficEvent) error {
	query := `
		INSERT INTO traffic_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		e.ID, string(e.Type), string(e.Severity), e.Lat, e.Lng,
		e.Address, e.Description, e.ReporterID,
		e.CreatedAt.UTC(), e.ExpiresAt.UTC(),
		e.Upvotes, e.Downvotes, e.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by id, expired ones included, so a voter can
// still see why a report disappeared. Deleted events are not returned.
func (r *EventRepository) GetByID(id string) (*models.TrafficEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM traffic_events WHERE id = ? AND deleted = 0`
	return r.scanEvent(r.db.QueryRow(query, id))
}

// ListActive retrieves all unexpired, non-deleted events. Used to rebuild
// the in-memory index on startup.
func (r *EventRepository) ListActive(now time.Time) ([]*models.TrafficEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM traffic_events
		WHERE deleted = 0 AND expires_at > ?
		ORDER BY created_at`

	rows, err := r.db.Query(query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.TrafficEvent
	for rows.Next() {
		e, err := r.scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkDeleted soft-deletes an event.
func (r *EventRepository) MarkDeleted(id string) error {
	res, err := r.db.Exec("UPDATE traffic_events SET deleted = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetVote returns a voter's current vote on an event, or nil if none.
func (r *EventRepository) GetVote(eventID, voterID string) (*models.Vote, error) {
	query := `SELECT event_id, voter_id, direction, cast_at FROM event_votes
		WHERE event_id = ? AND voter_id = ?`

	var v models.Vote
	var direction string
	err := r.db.QueryRow(query, eventID, voterID).Scan(&v.EventID, &v.VoterID, &direction, &v.CastAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vote: %w", err)
	}
	v.Direction = models.VoteDirection(direction)
	return &v, nil
}

// ApplyVote stores the vote (replacing the voter's previous one, if any)
// and the event's recomputed counters in one transaction, so a crash
// between the two writes cannot leave the score out of step with the
// ballot.
func (r *EventRepository) ApplyVote(v *models.Vote, upvotes, downvotes int, confidence float64, expiresAt time.Time) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		upsert := `
			INSERT INTO event_votes (event_id, voter_id, direction, cast_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (event_id, voter_id) DO UPDATE SET direction = excluded.direction, cast_at = excluded.cast_at
		`
		if _, err := tx.Exec(upsert, v.EventID, v.VoterID, string(v.Direction), v.CastAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert vote: %w", err)
		}

		update := `
			UPDATE traffic_events
			SET upvotes = ?, downvotes = ?, confidence_score = ?, expires_at = ?
			WHERE id = ?
		`
		if _, err := tx.Exec(update, upvotes, downvotes, confidence, expiresAt.UTC(), v.EventID); err != nil {
			return fmt.Errorf("failed to update vote state: %w", err)
		}
		return nil
	})
}

// PurgeExpired hard-deletes events that expired before the cutoff, along
// with their votes. Recently expired events are kept so GetByID can still
// explain why a report disappeared.
func (r *EventRepository) PurgeExpired(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM traffic_events WHERE expires_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *EventRepository) scanEvent(row *sql.Row) (*models.TrafficEvent, error) {
	e, err := scanEventFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *EventRepository) scanEventRow(rows *sql.Rows) (*models.TrafficEvent, error) {
	return scanEventFrom(rows)
}

func scanEventFrom(s rowScanner) (*models.TrafficEvent, error) {
	var e models.TrafficEvent
	var typ, severity string
	err := s.Scan(&e.ID, &typ, &severity, &e.Lat, &e.Lng,
		&e.Address, &e.Description, &e.ReporterID,
		&e.CreatedAt, &e.ExpiresAt,
		&e.Upvotes, &e.Downvotes, &e.Confidence)
	if err != nil {
		return nil, err
	}
	e.Type = models.EventType(typ)
	e.Severity = models.EventSeverity(severity)
	return &e, nil
}
