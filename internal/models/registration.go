package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// RegistrationType distinguishes individual and team roles.
type RegistrationType string

// Supported registration types.
const (
	RegistrationTypeIndividual RegistrationType = "INDIVIDUAL"
	RegistrationTypeTeamLeader RegistrationType = "TEAM_LEADER"
	RegistrationTypeTeamMember RegistrationType = "TEAM_MEMBER"
)

// Valid reports whether the type is known.
func (t RegistrationType) Valid() bool {
	switch t {
	case RegistrationTypeIndividual, RegistrationTypeTeamLeader, RegistrationTypeTeamMember:
		return true
	}
	return false
}

// RegistrationStatus represents the lifecycle of a registration.
type RegistrationStatus string

// Possible registration statuses.
const (
	RegistrationStatusActive    RegistrationStatus = "ACTIVE"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
)

// registrationNamespace seeds deterministic registration IDs so that the
// same participant, event, and type always derive the same ID.
var registrationNamespace = uuid.MustParse("8f3b9d54-7a1e-4c2b-9f60-2d5f14c0a7e3")

// NewRegistrationID derives the globally unique registration ID from its
// identifying triple. Determinism makes duplicate detection a primary-key
// concern rather than a scan.
func NewRegistrationID(participantID, eventID string, regType RegistrationType) string {
	seed := fmt.Sprintf("%s/%s/%s", participantID, eventID, regType)
	return uuid.NewSHA1(registrationNamespace, []byte(seed)).String()
}

// Registration is the authoritative full record, owned by the event
// aggregate. ParticipantData carries name, identifier, and contact fields
// and is opaque to the lifecycle core.
type Registration struct {
	ID              string             `db:"id" json:"id"`
	EventID         string             `db:"event_id" json:"event_id"`
	ParticipantID   string             `db:"participant_id" json:"participant_id"`
	ParticipantData types.JSONText     `db:"participant_data" json:"participant_data"`
	Type            RegistrationType   `db:"type" json:"type"`
	TeamID          *string            `db:"team_id" json:"team_id,omitempty"`
	Status          RegistrationStatus `db:"status" json:"status"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	CancelledAt     *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// ParticipationRef is the minimal projection of a registration stored under
// the participant aggregate for fast "my registrations" queries. It is never
// a source of truth: on divergence the full record wins and the reference is
// rewritten.
type ParticipationRef struct {
	RegistrationID string             `db:"registration_id" json:"registration_id"`
	ParticipantID  string             `db:"participant_id" json:"participant_id"`
	EventID        string             `db:"event_id" json:"event_id"`
	Type           RegistrationType   `db:"type" json:"type"`
	Status         RegistrationStatus `db:"status" json:"status"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// Ref projects the full record into its participant-side mirror.
func (r *Registration) Ref() ParticipationRef {
	return ParticipationRef{
		RegistrationID: r.ID,
		ParticipantID:  r.ParticipantID,
		EventID:        r.EventID,
		Type:           r.Type,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
	}
}

// MatchesRef reports whether the mirror still agrees with the full record on
// every projected field.
func (r *Registration) MatchesRef(ref ParticipationRef) bool {
	return ref.RegistrationID == r.ID &&
		ref.ParticipantID == r.ParticipantID &&
		ref.EventID == r.EventID &&
		ref.Type == r.Type &&
		ref.Status == r.Status
}
