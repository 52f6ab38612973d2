package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/clock"
	appErrors "github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/errors"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/jobs"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/lock"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/notify"
)

type registrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ExistsActive(ctx context.Context, participantID, eventID string) (bool, error)
	CountActive(ctx context.Context, eventID string) (int, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error)
	ListByTeam(ctx context.Context, eventID, teamID string) ([]models.Registration, error)
	ListByParticipant(ctx context.Context, participantID string) ([]models.Registration, error)
	UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, cancelledAt *time.Time) error
	Reactivate(ctx context.Context, reg *models.Registration) error
}

type participationRefRepository interface {
	Upsert(ctx context.Context, ref *models.ParticipationRef) error
	ListByParticipant(ctx context.Context, participantID string) ([]models.ParticipationRef, error)
	Delete(ctx context.Context, registrationID string) error
}

type eventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type registrationLocker interface {
	Acquire(ctx context.Context, key string) (*lock.Lease, bool, error)
	Release(ctx context.Context, lease *lock.Lease) error
}

type repairEnqueuer interface {
	Enqueue(job jobs.RepairJob) error
}

type registrationNotifier interface {
	PublishRegistrationChanged(ctx context.Context, msg notify.RegistrationChanged) error
}

// ParticipantInput carries a participant identity plus opaque contact data.
type ParticipantInput struct {
	ID   string          `json:"id" validate:"required"`
	Data json.RawMessage `json:"data"`
}

// CreateRegistrationRequest describes a registration create.
// For TEAM_LEADER registrations, Members lists the teammates who each
// receive their own TEAM_MEMBER registration under the shared team ID.
type CreateRegistrationRequest struct {
	EventID     string             `json:"event_id" validate:"required"`
	Participant ParticipantInput   `json:"participant" validate:"required"`
	Type        string             `json:"type" validate:"required,registration_type"`
	TeamID      *string            `json:"team_id,omitempty"`
	Members     []ParticipantInput `json:"members,omitempty" validate:"dive"`
}

// RegistrationService owns registration identity and the dual-record
// write/read path: full records under the event aggregate, reference mirrors
// under the participant aggregate.
type RegistrationService struct {
	regs      registrationRepository
	refs      participationRefRepository
	events    eventReader
	locker    registrationLocker
	notifier  registrationNotifier
	repair    repairEnqueuer
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(regs registrationRepository, refs participationRefRepository, events eventReader, locker registrationLocker, notifier registrationNotifier, clk clock.Clock, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if clk == nil {
		clk = clock.Real{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RegistrationService{regs: regs, refs: refs, events: events, locker: locker, notifier: notifier, clock: clk, validator: validate, logger: logger}
	svc.validator.RegisterValidation("registration_type", func(fl validator.FieldLevel) bool {
		return models.RegistrationType(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// AttachRepairQueue wires the asynchronous mirror repair queue. The queue is
// constructed after the service because its handler calls back into
// RepairParticipant.
func (s *RegistrationService) AttachRepairQueue(q repairEnqueuer) {
	s.repair = q
}

// AttachMetrics wires the optional metrics sink.
func (s *RegistrationService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// Create registers a participant (or a whole team) for an event. The full
// record is written first; the mirror write is attempted immediately and on
// failure queued for retry and reconciled lazily on the next read.
func (s *RegistrationService) Create(ctx context.Context, req CreateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	regType := models.RegistrationType(strings.ToUpper(req.Type))
	if regType == models.RegistrationTypeTeamMember && req.TeamID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team_id required for team member registration")
	}
	if len(req.Members) > 0 && regType != models.RegistrationTypeTeamLeader {
		return nil, appErrors.Clone(appErrors.ErrValidation, "members only allowed on team leader registration")
	}

	event, err := s.events.FindByID(ctx, req.EventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load event")
	}
	// The stored status may lag behind the scheduler; the registration
	// window is evaluated from the time windows, never from the stored value.
	if !event.TargetStatus(s.clock.Now()).AcceptsRegistrations() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "event is not accepting registrations")
	}
	if regType == models.RegistrationTypeIndividual && event.RegistrationMode != models.RegistrationModeIndividual {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event requires team registration")
	}
	if regType != models.RegistrationTypeIndividual && event.RegistrationMode != models.RegistrationModeTeam {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event requires individual registration")
	}

	participants := append([]ParticipantInput{req.Participant}, req.Members...)

	// Short-lived mutual exclusion per (participant, event) for the whole
	// check-then-write sequence. Losing the race is a declined conflict,
	// never a silent retry.
	var leases []*lock.Lease
	defer func() {
		for _, lease := range leases {
			if err := s.locker.Release(ctx, lease); err != nil {
				s.logger.Warn("failed to release registration lock", zap.Error(err))
			}
		}
	}()
	for _, p := range participants {
		lease, ok, err := s.locker.Acquire(ctx, fmt.Sprintf("%s:%s", p.ID, event.ID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to acquire registration lock")
		}
		if !ok {
			s.metrics.RecordRegistrationConflict()
			return nil, appErrors.Clone(appErrors.ErrConflict, "another registration for this participant is in progress")
		}
		leases = append(leases, lease)
	}

	for _, p := range participants {
		exists, err := s.regs.ExistsActive(ctx, p.ID, event.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to check existing registration")
		}
		if exists {
			s.metrics.RecordRegistrationConflict()
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("participant %s already has an active registration", p.ID))
		}
	}

	if event.Capacity != nil {
		count, err := s.regs.CountActive(ctx, event.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to count registrations")
		}
		if count+len(participants) > *event.Capacity {
			s.metrics.RecordRegistrationConflict()
			return nil, appErrors.Clone(appErrors.ErrConflict, "event capacity exhausted")
		}
	}

	teamID := req.TeamID
	if regType == models.RegistrationTypeTeamLeader && teamID == nil {
		id := uuid.NewString()
		teamID = &id
	}

	var primary *models.Registration
	var written []*models.Registration
	for i, p := range participants {
		pType := regType
		if i > 0 {
			pType = models.RegistrationTypeTeamMember
		}
		reg, err := s.writeRegistration(ctx, event.ID, p, pType, teamID)
		if err != nil {
			s.rollback(ctx, written)
			return nil, err
		}
		written = append(written, reg)
		if i == 0 {
			primary = reg
		}
	}
	return primary, nil
}

// rollback cancels the records written earlier in a team create whose later
// write failed, so a retry of the same request is not declined as a
// duplicate. Best effort: a record we cannot cancel here is reclaimed by the
// retry through the reactivation path.
func (s *RegistrationService) rollback(ctx context.Context, written []*models.Registration) {
	now := time.Now().UTC()
	for _, reg := range written {
		if err := s.regs.UpdateStatus(ctx, reg.ID, models.RegistrationStatusCancelled, &now); err != nil {
			s.logger.Error("failed to roll back partial team registration",
				zap.String("registration_id", reg.ID), zap.Error(err))
			continue
		}
		reg.Status = models.RegistrationStatusCancelled
		reg.CancelledAt = &now
		s.syncRef(ctx, reg)
		s.publishChange(ctx, reg, "cancelled")
	}
}

// writeRegistration persists one full record plus its mirror and emits the
// registration-changed message.
func (s *RegistrationService) writeRegistration(ctx context.Context, eventID string, p ParticipantInput, regType models.RegistrationType, teamID *string) (*models.Registration, error) {
	reg := &models.Registration{
		ID:              models.NewRegistrationID(p.ID, eventID, regType),
		EventID:         eventID,
		ParticipantID:   p.ID,
		ParticipantData: []byte(p.Data),
		Type:            regType,
		TeamID:          teamID,
		Status:          models.RegistrationStatusActive,
		CreatedAt:       time.Now().UTC(),
	}
	if len(reg.ParticipantData) == 0 {
		reg.ParticipantData = []byte("{}")
	}

	// A cancelled prior registration frees the slot; the deterministic ID
	// lands the re-registration on the same row.
	existing, err := s.regs.FindByID(ctx, reg.ID)
	switch {
	case err == sql.ErrNoRows:
		if err := s.regs.Create(ctx, reg); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to create registration")
		}
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load registration")
	case existing.Status == models.RegistrationStatusCancelled:
		if err := s.regs.Reactivate(ctx, reg); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to reactivate registration")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already exists")
	}

	s.syncRef(ctx, reg)
	s.publishChange(ctx, reg, "created")
	return reg, nil
}

// Cancel marks a registration cancelled. Cancelling a team leader cascades
// to every active member registration sharing the team. Cancelling an
// already-cancelled registration is a no-op.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string) error {
	reg, err := s.regs.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load registration")
	}
	if reg.Status == models.RegistrationStatusCancelled {
		return nil
	}

	targets := []models.Registration{*reg}
	if reg.Type == models.RegistrationTypeTeamLeader && reg.TeamID != nil {
		team, err := s.regs.ListByTeam(ctx, reg.EventID, *reg.TeamID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load team registrations")
		}
		targets = team
	}

	now := time.Now().UTC()
	for i := range targets {
		target := &targets[i]
		if target.Status == models.RegistrationStatusCancelled {
			continue
		}
		if err := s.regs.UpdateStatus(ctx, target.ID, models.RegistrationStatusCancelled, &now); err != nil {
			return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to cancel registration")
		}
		target.Status = models.RegistrationStatusCancelled
		target.CancelledAt = &now
		s.syncRef(ctx, target)
		s.publishChange(ctx, target, "cancelled")
	}
	return nil
}

// Get returns the full record for a registration.
func (s *RegistrationService) Get(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := s.regs.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load registration")
	}
	return reg, nil
}

// ListForParticipant returns a participant's registrations, lazily repairing
// any stale or missing reference mirrors against the full records.
func (s *RegistrationService) ListForParticipant(ctx context.Context, participantID string) ([]models.Registration, error) {
	if participantID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "participant id required")
	}
	full, err := s.regs.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to list registrations")
	}
	if err := s.repairRefs(ctx, participantID, full); err != nil {
		// Divergence handling stays internal; the read still succeeds.
		s.logger.Warn("reference repair failed", zap.String("participant_id", participantID), zap.Error(err))
	}
	return full, nil
}

// ListForEvent returns the authoritative registration listing for an event.
func (s *RegistrationService) ListForEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load event")
	}
	regs, err := s.regs.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to list registrations")
	}
	return regs, nil
}

// RepairParticipant rebuilds the reference mirror for one participant from
// the full records. It backs both the repair queue handler and the lazy
// read-repair path.
func (s *RegistrationService) RepairParticipant(ctx context.Context, participantID string) error {
	full, err := s.regs.ListByParticipant(ctx, participantID)
	if err != nil {
		return fmt.Errorf("load full records: %w", err)
	}
	return s.repairRefs(ctx, participantID, full)
}

func (s *RegistrationService) repairRefs(ctx context.Context, participantID string, full []models.Registration) error {
	refs, err := s.refs.ListByParticipant(ctx, participantID)
	if err != nil {
		return fmt.Errorf("load references: %w", err)
	}
	byID := make(map[string]models.ParticipationRef, len(refs))
	for _, ref := range refs {
		byID[ref.RegistrationID] = ref
	}

	seen := make(map[string]bool, len(full))
	for i := range full {
		reg := &full[i]
		seen[reg.ID] = true
		ref, ok := byID[reg.ID]
		if ok && reg.MatchesRef(ref) {
			continue
		}
		fresh := reg.Ref()
		if err := s.refs.Upsert(ctx, &fresh); err != nil {
			return fmt.Errorf("rewrite reference %s: %w", reg.ID, err)
		}
		s.metrics.RecordMirrorRepair()
	}
	for _, ref := range refs {
		if seen[ref.RegistrationID] {
			continue
		}
		if err := s.refs.Delete(ctx, ref.RegistrationID); err != nil {
			return fmt.Errorf("delete orphaned reference %s: %w", ref.RegistrationID, err)
		}
		s.metrics.RecordMirrorRepair()
	}
	return nil
}

// syncRef attempts the immediate mirror write and falls back to the repair
// queue when it fails. The full record is already durable at this point.
func (s *RegistrationService) syncRef(ctx context.Context, reg *models.Registration) {
	ref := reg.Ref()
	err := s.refs.Upsert(ctx, &ref)
	if err == nil {
		return
	}
	s.logger.Warn("mirror write failed, queueing repair",
		zap.String("registration_id", reg.ID), zap.Error(err))
	if s.repair == nil {
		return
	}
	if err := s.repair.Enqueue(jobs.RepairJob{RegistrationID: reg.ID, ParticipantID: reg.ParticipantID}); err != nil {
		s.logger.Error("failed to enqueue mirror repair",
			zap.String("registration_id", reg.ID), zap.Error(err))
	}
}

func (s *RegistrationService) publishChange(ctx context.Context, reg *models.Registration, action string) {
	if s.notifier == nil {
		return
	}
	msg := notify.RegistrationChanged{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		ParticipantID:  reg.ParticipantID,
		Action:         action,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.notifier.PublishRegistrationChanged(ctx, msg); err != nil {
		s.logger.Warn("failed to publish registration change",
			zap.String("registration_id", reg.ID), zap.Error(err))
	}
}
