package models

import "time"

// SessionKind categorizes a session within an event schedule.
type SessionKind string

// Supported session kinds.
const (
	SessionKindLecture   SessionKind = "LECTURE"
	SessionKindWorkshop  SessionKind = "WORKSHOP"
	SessionKindMilestone SessionKind = "MILESTONE"
	SessionKindExam      SessionKind = "EXAM"
)

// Valid reports whether the kind is known.
func (k SessionKind) Valid() bool {
	switch k {
	case SessionKindLecture, SessionKindWorkshop, SessionKindMilestone, SessionKindExam:
		return true
	}
	return false
}

// Session is a scheduled unit of an event. Weight expresses its relative
// importance in the attendance outcome; Mandatory marks a milestone session
// that must be attended to pass regardless of overall percentage.
type Session struct {
	ID        string      `db:"id" json:"id"`
	EventID   string      `db:"event_id" json:"event_id"`
	Title     string      `db:"title" json:"title"`
	Kind      SessionKind `db:"kind" json:"kind"`
	Weight    float64     `db:"weight" json:"weight"`
	Mandatory bool        `db:"mandatory" json:"mandatory"`
	StartAt   time.Time   `db:"start_at" json:"start_at"`
	EndAt     time.Time   `db:"end_at" json:"end_at"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
