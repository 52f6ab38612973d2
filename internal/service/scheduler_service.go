package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/clock"
	appErrors "github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/errors"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/notify"
)

type schedulerEventRepository interface {
	ListNonTerminal(ctx context.Context) ([]models.Event, error)
	UpdateStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error)
}

// SchedulerService periodically recomputes every active event's target
// lifecycle stage and applies the missing transitions one hop at a time, so
// a delayed tick still emits every intermediate notification in order.
type SchedulerService struct {
	events   schedulerEventRepository
	clock    clock.Clock
	notifier statusNotifier
	logger   *zap.Logger
	metrics  *MetricsService
	interval time.Duration

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSchedulerService constructs the scheduler. It holds only the injected
// clock and store handles; there is no process-wide singleton.
func NewSchedulerService(events schedulerEventRepository, clk clock.Clock, notifier statusNotifier, interval time.Duration, logger *zap.Logger) *SchedulerService {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SchedulerService{events: events, clock: clk, notifier: notifier, interval: interval, logger: logger}
}

// AttachMetrics wires the optional metrics sink.
func (s *SchedulerService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// Start launches the periodic tick loop. Safe to call once.
func (s *SchedulerService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "interval", s.interval)
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *SchedulerService) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Warn("scheduler tick failed", zap.Error(err))
			}
		}
	}
}

// Tick runs one evaluation pass over all non-terminal events. Failures on
// one event are logged and do not abort the others; the event is retried on
// the next tick.
func (s *SchedulerService) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTick(time.Since(start))
	}()

	events, err := s.events.ListNonTerminal(ctx)
	if err != nil {
		s.metrics.RecordTickError()
		return appErrors.Wrap(err, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, "failed to load active events")
	}

	now := s.clock.Now()
	for i := range events {
		if err := s.advance(ctx, &events[i], now); err != nil {
			s.metrics.RecordTickError()
			s.logger.Warn("failed to advance event",
				zap.String("event_id", events[i].ID), zap.Error(err))
		}
	}
	return nil
}

// advance walks the event from its stored status to its recomputed target,
// one transition at a time. The guarded status swap means a concurrent
// scheduler instance advancing the same event simply wins the hop; we stop
// and let the next tick re-evaluate.
func (s *SchedulerService) advance(ctx context.Context, event *models.Event, now time.Time) error {
	target := event.TargetStatus(now)
	if target == event.Status {
		return nil
	}
	path := models.TransitionPath(event.Status, target)
	current := event.Status
	for _, next := range path {
		ok, err := s.events.UpdateStatus(ctx, event.ID, current, next)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Debug("event advanced concurrently, skipping",
				zap.String("event_id", event.ID), zap.String("at", string(current)))
			return nil
		}
		s.metrics.RecordTransition(next)
		if s.notifier != nil {
			msg := notify.StatusChanged{EventID: event.ID, FromStatus: string(current), ToStatus: string(next), OccurredAt: now}
			if err := s.notifier.PublishStatusChanged(ctx, msg); err != nil {
				s.logger.Warn("failed to publish status change",
					zap.String("event_id", event.ID), zap.String("to", string(next)), zap.Error(err))
			}
		}
		current = next
	}
	event.Status = current
	return nil
}
