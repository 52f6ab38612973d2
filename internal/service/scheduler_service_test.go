package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/clock"
)

func TestSchedulerTickAdvancesOneHop(t *testing.T) {
	events := newFakeEventStore(lifecycleEvent(models.EventStatusUpcoming))
	notifier := &fakeNotifier{}
	clk := clock.NewFake(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC))
	svc := NewSchedulerService(events, clk, notifier, time.Minute, nil)

	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.EventStatusRegistrationOpen, events.status("evt-1"))
	assert.Equal(t, []string{string(models.EventStatusRegistrationOpen)}, notifier.statusTargets())
}

func TestSchedulerCatchUpAppliesIntermediateTransitions(t *testing.T) {
	// The event release is manual, so a tick delayed past the event end must
	// still walk REGISTRATION_CLOSED, ONGOING, and COMPLETED one at a time.
	event := lifecycleEvent(models.EventStatusRegistrationOpen)
	event.ManualCertificateRelease = true
	events := newFakeEventStore(event)
	notifier := &fakeNotifier{}
	clk := clock.NewFake(time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC))
	svc := NewSchedulerService(events, clk, notifier, time.Minute, nil)

	require.NoError(t, svc.Tick(context.Background()))

	assert.Equal(t, models.EventStatusCompleted, events.status("evt-1"))
	assert.Equal(t, []string{
		string(models.EventStatusRegistrationClosed),
		string(models.EventStatusOngoing),
		string(models.EventStatusCompleted),
	}, notifier.statusTargets())
}

func TestSchedulerCatchUpEquivalentToStepwise(t *testing.T) {
	// One delayed tick lands on the same final state as a tick at every
	// boundary.
	delayed := newFakeEventStore(lifecycleEvent(models.EventStatusUpcoming))
	clkDelayed := clock.NewFake(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, NewSchedulerService(delayed, clkDelayed, nil, time.Minute, nil).Tick(context.Background()))

	stepwise := newFakeEventStore(lifecycleEvent(models.EventStatusUpcoming))
	clkStep := clock.NewFake(time.Time{})
	svc := NewSchedulerService(stepwise, clkStep, nil, time.Minute, nil)
	for _, now := range []time.Time{
		time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 15, 16, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	} {
		clkStep.Set(now)
		require.NoError(t, svc.Tick(context.Background()))
	}

	assert.Equal(t, delayed.status("evt-1"), stepwise.status("evt-1"))
	assert.Equal(t, models.EventStatusCertificateAvailable, delayed.status("evt-1"))
}

func TestSchedulerTickSkipsDraftAndTerminal(t *testing.T) {
	draft := lifecycleEvent(models.EventStatusDraft)
	draft.ID = "evt-draft"
	cancelled := lifecycleEvent(models.EventStatusCancelled)
	cancelled.ID = "evt-cancelled"
	events := newFakeEventStore(draft, cancelled)
	notifier := &fakeNotifier{}
	clk := clock.NewFake(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	svc := NewSchedulerService(events, clk, notifier, time.Minute, nil)

	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.EventStatusDraft, events.status("evt-draft"))
	assert.Equal(t, models.EventStatusCancelled, events.status("evt-cancelled"))
	assert.Empty(t, notifier.statusMsgs)
}

func TestSchedulerTickIsolatesPerEventFailures(t *testing.T) {
	broken := lifecycleEvent(models.EventStatusUpcoming)
	broken.ID = "evt-a"
	healthy := lifecycleEvent(models.EventStatusUpcoming)
	healthy.ID = "evt-b"
	events := newFakeEventStore(broken, healthy)
	events.updateErr["evt-a"] = assert.AnError
	clk := clock.NewFake(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC))
	svc := NewSchedulerService(events, clk, nil, time.Minute, nil)

	// The failing event is logged and retried next tick; the rest advance.
	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.EventStatusUpcoming, events.status("evt-a"))
	assert.Equal(t, models.EventStatusRegistrationOpen, events.status("evt-b"))
}

func TestSchedulerTickYieldsToConcurrentWinner(t *testing.T) {
	events := newFakeEventStore(lifecycleEvent(models.EventStatusUpcoming))
	events.failCAS["evt-1"] = true
	notifier := &fakeNotifier{}
	clk := clock.NewFake(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC))
	svc := NewSchedulerService(events, clk, notifier, time.Minute, nil)

	// Losing the guarded swap is not an error; the hop already happened
	// elsewhere.
	require.NoError(t, svc.Tick(context.Background()))
	assert.Empty(t, notifier.statusMsgs)
}

func TestSchedulerTickIdempotent(t *testing.T) {
	events := newFakeEventStore(lifecycleEvent(models.EventStatusUpcoming))
	notifier := &fakeNotifier{}
	clk := clock.NewFake(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC))
	svc := NewSchedulerService(events, clk, notifier, time.Minute, nil)

	require.NoError(t, svc.Tick(context.Background()))
	require.NoError(t, svc.Tick(context.Background()))

	assert.Equal(t, models.EventStatusRegistrationOpen, events.status("evt-1"))
	assert.Len(t, notifier.statusMsgs, 1)
}

func TestSchedulerStartStop(t *testing.T) {
	events := newFakeEventStore()
	svc := NewSchedulerService(events, clock.NewFake(time.Now()), nil, 5*time.Millisecond, nil)

	svc.Start(context.Background())
	svc.Start(context.Background()) // second start is a no-op
	time.Sleep(20 * time.Millisecond)
	svc.Stop()
	svc.Stop() // second stop is a no-op
}
