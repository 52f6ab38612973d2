package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
)

// EventRepository handles persistence of events and their sessions.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, name, status, registration_mode, capacity, pass_threshold,
        manual_certificate_release, registration_start, registration_end, start_at, end_at,
        certificate_end, created_at`

// FindByID returns an event by its ID.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListNonTerminal returns every event the scheduler still needs to drive.
func (r *EventRepository) ListNonTerminal(ctx context.Context) ([]models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE status NOT IN ($1, $2) ORDER BY start_at`, eventColumns)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, models.EventStatusArchived, models.EventStatusCancelled); err != nil {
		return nil, fmt.Errorf("list non-terminal events: %w", err)
	}
	return events, nil
}

// Create persists a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = models.EventStatusDraft
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO events (id, name, status, registration_mode, capacity, pass_threshold,
        manual_certificate_release, registration_start, registration_end, start_at, end_at,
        certificate_end, created_at)
        VALUES (:id, :name, :status, :registration_mode, :capacity, :pass_threshold,
        :manual_certificate_release, :registration_start, :registration_end, :start_at, :end_at,
        :certificate_end, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// UpdateStatus advances the stored status only when the current value still
// matches from. The boolean reports whether the swap happened, letting
// concurrent scheduler instances race safely.
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error) {
	const query = `UPDATE events SET status = $3 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update event status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update event status: %w", err)
	}
	return affected > 0, nil
}

// UpdateWindows rewrites the admin-editable time windows.
func (r *EventRepository) UpdateWindows(ctx context.Context, event *models.Event) error {
	const query = `UPDATE events SET registration_start = $2, registration_end = $3, start_at = $4,
        end_at = $5, certificate_end = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, event.ID, event.RegistrationStart, event.RegistrationEnd,
		event.StartAt, event.EndAt, event.CertificateEnd); err != nil {
		return fmt.Errorf("update event windows: %w", err)
	}
	return nil
}

// ListSessions returns the event's sessions in schedule order.
func (r *EventRepository) ListSessions(ctx context.Context, eventID string) ([]models.Session, error) {
	const query = `SELECT id, event_id, title, kind, weight, mandatory, start_at, end_at, created_at
        FROM sessions WHERE event_id = $1 ORDER BY start_at`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, eventID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindSession returns a single session by its ID.
func (r *EventRepository) FindSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const query = `SELECT id, event_id, title, kind, weight, mandatory, start_at, end_at, created_at
        FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		return nil, err
	}
	return &session, nil
}

// AddSession appends a session to an event's schedule.
func (r *EventRepository) AddSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, event_id, title, kind, weight, mandatory, start_at, end_at, created_at)
        VALUES (:id, :event_id, :title, :kind, :weight, :mandatory, :start_at, :end_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	return nil
}
