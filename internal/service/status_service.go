package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/clock"
	appErrors "github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/errors"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/notify"
)

type eventStatusRepository interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	UpdateStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error)
}

type statusNotifier interface {
	PublishStatusChanged(ctx context.Context, msg notify.StatusChanged) error
}

// StatusService answers status queries and applies the admin-triggered
// transitions that the time-driven machine cannot take on its own.
type StatusService struct {
	events   eventStatusRepository
	clock    clock.Clock
	notifier statusNotifier
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewStatusService constructs StatusService.
func NewStatusService(events eventStatusRepository, clk clock.Clock, notifier statusNotifier, logger *zap.Logger) *StatusService {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{events: events, clock: clk, notifier: notifier, logger: logger}
}

// AttachMetrics wires the optional metrics sink.
func (s *StatusService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// GetCurrentStatus resolves the status the event should hold right now. The
// stored value may lag behind until the next scheduler tick; evaluation from
// the time windows is authoritative for reads.
func (s *StatusService) GetCurrentStatus(ctx context.Context, eventID string) (models.EventStatus, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	return event.TargetStatus(s.clock.Now()), nil
}

// Publish moves an event from DRAFT to UPCOMING.
func (s *StatusService) Publish(ctx context.Context, eventID string) error {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status != models.EventStatusDraft {
		return appErrors.Clone(appErrors.ErrTransition, "only draft events can be published")
	}
	return s.apply(ctx, event.ID, models.EventStatusDraft, models.EventStatusUpcoming)
}

// ForceTransition applies an admin-requested forward transition, walking
// every intermediate stage so no side effect is skipped. Backward moves and
// leaving a terminal state are declined.
func (s *StatusService) ForceTransition(ctx context.Context, eventID string, to models.EventStatus) error {
	if !to.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown target status")
	}
	if to == models.EventStatusCancelled {
		return s.CancelEvent(ctx, eventID)
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrTransition, "event is in a terminal state")
	}
	path := models.TransitionPath(event.Status, to)
	if path == nil {
		return appErrors.Clone(appErrors.ErrTransition, "no forward path to requested status")
	}
	current := event.Status
	for _, next := range path {
		if err := s.apply(ctx, event.ID, current, next); err != nil {
			return err
		}
		current = next
	}
	return nil
}

// CancelEvent moves any non-terminal event into the absorbing CANCELLED
// state.
func (s *StatusService) CancelEvent(ctx context.Context, eventID string) error {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrTransition, "event is in a terminal state")
	}
	return s.apply(ctx, event.ID, event.Status, models.EventStatusCancelled)
}

func (s *StatusService) loadEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load event")
	}
	return event, nil
}

func (s *StatusService) apply(ctx context.Context, eventID string, from, to models.EventStatus) error {
	ok, err := s.events.UpdateStatus(ctx, eventID, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to update event status")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "event status changed concurrently")
	}
	s.metrics.RecordTransition(to)
	msg := notify.StatusChanged{EventID: eventID, FromStatus: string(from), ToStatus: string(to), OccurredAt: s.clock.Now()}
	if s.notifier != nil {
		if err := s.notifier.PublishStatusChanged(ctx, msg); err != nil {
			s.logger.Warn("failed to publish status change",
				zap.String("event_id", eventID), zap.String("to", string(to)), zap.Error(err))
		}
	}
	return nil
}
