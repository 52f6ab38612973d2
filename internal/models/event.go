package models

import "time"

// EventStatus represents the lifecycle stage of an event.
type EventStatus string

// Lifecycle stages, ordered. CANCELLED is reachable from any non-terminal
// stage and absorbs.
const (
	EventStatusDraft                EventStatus = "DRAFT"
	EventStatusUpcoming             EventStatus = "UPCOMING"
	EventStatusRegistrationOpen     EventStatus = "REGISTRATION_OPEN"
	EventStatusRegistrationClosed   EventStatus = "REGISTRATION_CLOSED"
	EventStatusOngoing              EventStatus = "ONGOING"
	EventStatusCompleted            EventStatus = "COMPLETED"
	EventStatusCertificateAvailable EventStatus = "CERTIFICATE_AVAILABLE"
	EventStatusArchived             EventStatus = "ARCHIVED"
	EventStatusCancelled            EventStatus = "CANCELLED"
)

// forwardChain is the linear lifecycle ordering used for rank and path
// computations.
var forwardChain = []EventStatus{
	EventStatusDraft,
	EventStatusUpcoming,
	EventStatusRegistrationOpen,
	EventStatusRegistrationClosed,
	EventStatusOngoing,
	EventStatusCompleted,
	EventStatusCertificateAvailable,
	EventStatusArchived,
}

// Rank returns the position of the status on the forward chain, or -1 for
// CANCELLED and unknown values.
func (s EventStatus) Rank() int {
	for i, st := range forwardChain {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the status is a known lifecycle stage.
func (s EventStatus) Valid() bool {
	return s == EventStatusCancelled || s.Rank() >= 0
}

// Terminal reports whether the status has no outgoing transitions.
func (s EventStatus) Terminal() bool {
	return s == EventStatusArchived || s == EventStatusCancelled
}

// AcceptsRegistrations reports whether new registrations are permitted.
func (s EventStatus) AcceptsRegistrations() bool {
	return s == EventStatusRegistrationOpen
}

// CertificatePhase reports whether certificates may be issued: the event has
// reached CERTIFICATE_AVAILABLE and was not cancelled.
func (s EventStatus) CertificatePhase() bool {
	return s.Rank() >= EventStatusCertificateAvailable.Rank()
}

// RegistrationMode distinguishes individual and team events.
type RegistrationMode string

// Supported registration modes.
const (
	RegistrationModeIndividual RegistrationMode = "INDIVIDUAL"
	RegistrationModeTeam       RegistrationMode = "TEAM"
)

// Event is the event aggregate root. Sessions and full registrations are
// stored alongside it and loaded separately.
type Event struct {
	ID                       string           `db:"id" json:"id"`
	Name                     string           `db:"name" json:"name"`
	Status                   EventStatus      `db:"status" json:"status"`
	RegistrationMode         RegistrationMode `db:"registration_mode" json:"registration_mode"`
	Capacity                 *int             `db:"capacity" json:"capacity,omitempty"`
	PassThreshold            *float64         `db:"pass_threshold" json:"pass_threshold,omitempty"`
	ManualCertificateRelease bool             `db:"manual_certificate_release" json:"manual_certificate_release"`
	RegistrationStart        time.Time        `db:"registration_start" json:"registration_start"`
	RegistrationEnd          time.Time        `db:"registration_end" json:"registration_end"`
	StartAt                  time.Time        `db:"start_at" json:"start_at"`
	EndAt                    time.Time        `db:"end_at" json:"end_at"`
	CertificateEnd           time.Time        `db:"certificate_end" json:"certificate_end"`
	CreatedAt                time.Time        `db:"created_at" json:"created_at"`
}

// TargetStatus recomputes the stage the event should be in at the given
// instant, purely from its time windows and stored status. Evaluating it is
// idempotent and never moves backwards, which makes delayed scheduler
// catch-up safe.
func (e *Event) TargetStatus(now time.Time) EventStatus {
	switch e.Status {
	case EventStatusCancelled, EventStatusArchived:
		return e.Status
	case EventStatusDraft:
		// Publishing is an explicit admin action; time alone never
		// moves an event out of DRAFT.
		return EventStatusDraft
	}

	target := EventStatusUpcoming
	if !now.Before(e.RegistrationStart) {
		target = EventStatusRegistrationOpen
	}
	if !now.Before(e.RegistrationEnd) {
		target = EventStatusRegistrationClosed
	}
	if !now.Before(e.StartAt) {
		target = EventStatusOngoing
	}
	if !now.Before(e.EndAt) {
		target = EventStatusCompleted
		released := !e.ManualCertificateRelease || e.Status.Rank() >= EventStatusCertificateAvailable.Rank()
		if released {
			target = EventStatusCertificateAvailable
			if !now.Before(e.CertificateEnd) {
				target = EventStatusArchived
			}
		}
	}

	if target.Rank() < e.Status.Rank() {
		return e.Status
	}
	return target
}

// TransitionPath lists every intermediate stage between from (exclusive) and
// to (inclusive), in forward order. It returns nil when no forward path
// exists.
func TransitionPath(from, to EventStatus) []EventStatus {
	fromRank := from.Rank()
	toRank := to.Rank()
	if fromRank < 0 || toRank < 0 || toRank <= fromRank {
		return nil
	}
	path := make([]EventStatus, 0, toRank-fromRank)
	for i := fromRank + 1; i <= toRank; i++ {
		path = append(path, forwardChain[i])
	}
	return path
}

// PassThresholdOrDefault returns the event's configured pass threshold, or
// the supplied default when the event does not override it.
func (e *Event) PassThresholdOrDefault(def float64) float64 {
	if e.PassThreshold != nil {
		return *e.PassThreshold
	}
	return def
}

// Full reports whether the event has reached its registration capacity given
// the current count of active registrations. A nil capacity means unlimited.
func (e *Event) Full(activeRegistrations int) bool {
	if e.Capacity == nil {
		return false
	}
	return activeRegistrations >= *e.Capacity
}
