package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
)

// ParticipationRefRepository persists the participant-side mirror of
// registrations. It is rewritten freely by read-repair; the full record
// always wins.
type ParticipationRefRepository struct {
	db *sqlx.DB
}

// NewParticipationRefRepository constructs the repository.
func NewParticipationRefRepository(db *sqlx.DB) *ParticipationRefRepository {
	return &ParticipationRefRepository{db: db}
}

// Upsert writes or overwrites the mirror row for a registration.
func (r *ParticipationRefRepository) Upsert(ctx context.Context, ref *models.ParticipationRef) error {
	const query = `INSERT INTO participation_refs (registration_id, participant_id, event_id, type, status, created_at)
        VALUES (:registration_id, :participant_id, :event_id, :type, :status, :created_at)
        ON CONFLICT (registration_id) DO UPDATE SET
        participant_id = EXCLUDED.participant_id,
        event_id = EXCLUDED.event_id,
        type = EXCLUDED.type,
        status = EXCLUDED.status,
        created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, ref); err != nil {
		return fmt.Errorf("upsert participation ref: %w", err)
	}
	return nil
}

// ListByParticipant returns the mirror rows for a participant.
func (r *ParticipationRefRepository) ListByParticipant(ctx context.Context, participantID string) ([]models.ParticipationRef, error) {
	const query = `SELECT registration_id, participant_id, event_id, type, status, created_at
        FROM participation_refs WHERE participant_id = $1 ORDER BY created_at DESC`
	var refs []models.ParticipationRef
	if err := r.db.SelectContext(ctx, &refs, query, participantID); err != nil {
		return nil, fmt.Errorf("list participation refs: %w", err)
	}
	return refs, nil
}

// Delete removes an orphaned mirror row.
func (r *ParticipationRefRepository) Delete(ctx context.Context, registrationID string) error {
	const query = `DELETE FROM participation_refs WHERE registration_id = $1`
	if _, err := r.db.ExecContext(ctx, query, registrationID); err != nil {
		return fmt.Errorf("delete participation ref: %w", err)
	}
	return nil
}
