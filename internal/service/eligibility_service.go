package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	appErrors "github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/errors"
)

// Ineligibility reasons returned to the certificate renderer for caller
// diagnostics.
const (
	ReasonEventNotReady         = "event_not_ready"
	ReasonAttendanceFailed      = "attendance_failed"
	ReasonRegistrationCancelled = "registration_cancelled"
)

type outcomeComputer interface {
	ComputeOutcome(ctx context.Context, registrationID string) (*models.AttendanceOutcome, error)
}

// EligibilityResult is the certificate eligibility decision.
type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// EligibilityService combines event status, registration validity, and
// attendance outcome into one decision for the external certificate service.
type EligibilityService struct {
	registrations registrationReader
	events        eventReader
	attendance    outcomeComputer
	logger        *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(registrations registrationReader, events eventReader, attendance outcomeComputer, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{registrations: registrations, events: events, attendance: attendance, logger: logger}
}

// IsEligible decides certificate eligibility. A normally ineligible case is
// a structured result, never an error.
func (s *EligibilityService) IsEligible(ctx context.Context, registrationID string) (*EligibilityResult, error) {
	reg, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load registration")
	}
	if reg.Status != models.RegistrationStatusActive {
		return &EligibilityResult{Eligible: false, Reason: ReasonRegistrationCancelled}, nil
	}

	event, err := s.events.FindByID(ctx, reg.EventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load event")
	}
	if event.Status == models.EventStatusCancelled || !event.Status.CertificatePhase() {
		return &EligibilityResult{Eligible: false, Reason: ReasonEventNotReady}, nil
	}

	outcome, err := s.attendance.ComputeOutcome(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !outcome.Passed {
		return &EligibilityResult{Eligible: false, Reason: ReasonAttendanceFailed}, nil
	}
	return &EligibilityResult{Eligible: true}, nil
}
