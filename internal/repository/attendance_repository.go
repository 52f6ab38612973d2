package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
)

// AttendanceRepository persists per-session attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records attendance idempotently: a second mark for the same
// (registration, session) pair overwrites the previous one.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_records (registration_id, session_id, attended, recorded_at)
        VALUES (:registration_id, :session_id, :attended, :recorded_at)
        ON CONFLICT (registration_id, session_id) DO UPDATE SET
        attended = EXCLUDED.attended,
        recorded_at = EXCLUDED.recorded_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// ListByRegistration returns every attendance record for a registration.
func (r *AttendanceRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT registration_id, session_id, attended, recorded_at
        FROM attendance_records WHERE registration_id = $1 ORDER BY recorded_at`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, registrationID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}
