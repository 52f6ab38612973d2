package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	appErrors "github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListByRegistration(ctx context.Context, registrationID string) ([]models.AttendanceRecord, error)
}

type sessionReader interface {
	ListSessions(ctx context.Context, eventID string) ([]models.Session, error)
	FindSession(ctx context.Context, sessionID string) (*models.Session, error)
}

type registrationReader interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
}

// RecordAttendanceRequest marks presence at one session.
type RecordAttendanceRequest struct {
	RegistrationID string `json:"registration_id" validate:"required"`
	SessionID      string `json:"session_id" validate:"required"`
	Attended       bool   `json:"attended"`
}

// AttendanceService converts heterogeneous session schedules into pass/fail
// attendance outcomes.
type AttendanceService struct {
	records       attendanceRepository
	sessions      sessionReader
	registrations registrationReader
	events        eventReader
	threshold     float64
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAttendanceService constructs the attendance service. The threshold is
// the default pass percentage applied when an event does not override it.
func NewAttendanceService(records attendanceRepository, sessions sessionReader, registrations registrationReader, events eventReader, threshold float64, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 75
	}
	return &AttendanceService{records: records, sessions: sessions, registrations: registrations, events: events, threshold: threshold, validator: validate, logger: logger}
}

// Record marks attendance for one session. The write is an idempotent
// upsert: concurrent marks for the same pair resolve last-write-wins.
// Attendance against a cancelled registration is declined.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	reg, err := s.registrations.FindByID(ctx, req.RegistrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load registration")
	}
	if reg.Status != models.RegistrationStatusActive {
		return appErrors.Clone(appErrors.ErrConflict, "registration is cancelled")
	}
	session, err := s.sessions.FindSession(ctx, req.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "unknown session id")
		}
		return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load session")
	}
	if session.EventID != reg.EventID {
		return appErrors.Clone(appErrors.ErrValidation, "session does not belong to the registration's event")
	}
	record := &models.AttendanceRecord{RegistrationID: reg.ID, SessionID: session.ID, Attended: req.Attended}
	if err := s.records.Upsert(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to record attendance")
	}
	return nil
}

// ComputeOutcome derives the pass/fail determination for a registration from
// the event's current session list and the recorded attendance. The result
// is deterministic for identical inputs.
func (s *AttendanceService) ComputeOutcome(ctx context.Context, registrationID string) (*models.AttendanceOutcome, error) {
	reg, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load registration")
	}
	event, err := s.events.FindByID(ctx, reg.EventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load event")
	}
	sessions, err := s.sessions.ListSessions(ctx, reg.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load sessions")
	}
	records, err := s.records.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load attendance records")
	}

	outcome := models.ComputeOutcome(sessions, records, event.PassThresholdOrDefault(s.threshold))
	return &outcome, nil
}

// Strategy exposes the derived attendance strategy for an event.
func (s *AttendanceService) Strategy(ctx context.Context, eventID string) (*models.AttendanceStrategy, error) {
	sessions, err := s.sessions.ListSessions(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load sessions")
	}
	strategy := models.DeriveStrategy(sessions)
	return &strategy, nil
}
