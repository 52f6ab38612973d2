package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
)

// RegistrationRepository persists full registration records under the event
// aggregate. This is the authoritative side of the dual-write pair.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, event_id, participant_id, participant_data, type, team_id,
        status, created_at, cancelled_at`

// Create persists a new full record.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = models.NewRegistrationID(reg.ParticipantID, reg.EventID, reg.Type)
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	if reg.Status == "" {
		reg.Status = models.RegistrationStatusActive
	}
	const query = `INSERT INTO registrations (id, event_id, participant_id, participant_data, type,
        team_id, status, created_at, cancelled_at)
        VALUES (:id, :event_id, :participant_id, :participant_data, :type, :team_id, :status,
        :created_at, :cancelled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID returns a full record by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ExistsActive checks for an active registration on the participant/event pair.
func (r *RegistrationRepository) ExistsActive(ctx context.Context, participantID, eventID string) (bool, error) {
	const query = `SELECT 1 FROM registrations WHERE participant_id = $1 AND event_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, participantID, eventID, models.RegistrationStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active registration: %w", err)
	}
	return true, nil
}

// CountActive returns the number of active registrations for an event, used
// for capacity checks.
func (r *RegistrationRepository) CountActive(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID, models.RegistrationStatusActive); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}

// ListByEvent returns every full record for an event. This is the
// authoritative listing.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE event_id = $1 ORDER BY created_at`, registrationColumns)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, eventID); err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	return regs, nil
}

// ListByTeam returns the active registrations sharing a team within an event.
func (r *RegistrationRepository) ListByTeam(ctx context.Context, eventID, teamID string) ([]models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE event_id = $1 AND team_id = $2 AND status = $3 ORDER BY created_at`, registrationColumns)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, eventID, teamID, models.RegistrationStatusActive); err != nil {
		return nil, fmt.Errorf("list team registrations: %w", err)
	}
	return regs, nil
}

// ListByParticipant returns every full record for a participant across
// events. Used as the authoritative input for mirror repair.
func (r *RegistrationRepository) ListByParticipant(ctx context.Context, participantID string) ([]models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE participant_id = $1 ORDER BY created_at DESC`, registrationColumns)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, participantID); err != nil {
		return nil, fmt.Errorf("list participant registrations: %w", err)
	}
	return regs, nil
}

// UpdateStatus flips a registration's status, stamping cancelled_at on
// cancellation.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, cancelledAt *time.Time) error {
	const query = `UPDATE registrations SET status = $2, cancelled_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, cancelledAt); err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return nil
}

// Reactivate rewrites a previously cancelled record as a fresh active
// registration. Deterministic IDs make re-registration land on the same row.
func (r *RegistrationRepository) Reactivate(ctx context.Context, reg *models.Registration) error {
	const query = `UPDATE registrations SET participant_data = $2, team_id = $3, status = $4,
        created_at = $5, cancelled_at = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, reg.ID, reg.ParticipantData, reg.TeamID,
		models.RegistrationStatusActive, reg.CreatedAt); err != nil {
		return fmt.Errorf("reactivate registration: %w", err)
	}
	return nil
}
