package models

import (
	"math"
	"time"
)

// AttendanceRecord marks presence at one session for one registration.
// Records are idempotently upserted: a second mark for the same pair
// overwrites rather than duplicates.
type AttendanceRecord struct {
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	Attended       bool      `db:"attended" json:"attended"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}

// StrategyKind identifies how an event's session schedule is converted into
// a pass/fail determination.
type StrategyKind string

// Supported attendance strategies.
const (
	StrategyBinary             StrategyKind = "binary"
	StrategyUniformPercentage  StrategyKind = "uniform_percentage"
	StrategyWeightedPercentage StrategyKind = "weighted_percentage"
	StrategyMilestoneGated     StrategyKind = "milestone_gated"
)

// AttendanceStrategy is the tagged variant derived once from an event's
// session list.
type AttendanceStrategy struct {
	Kind                StrategyKind `json:"kind"`
	MandatorySessionIDs []string     `json:"mandatory_session_ids,omitempty"`
}

// AttendanceOutcome is the derived pass/fail determination. It is computed
// on demand and never stored.
type AttendanceOutcome struct {
	Percentage float64      `json:"percentage"`
	Passed     bool         `json:"passed"`
	Strategy   StrategyKind `json:"strategy"`
}

// DeriveStrategy selects the attendance strategy from the shape of the
// session list: a mandatory milestone gates everything; otherwise a single
// session is binary, uniform weights yield plain percentage, and mixed
// weights yield weighted percentage.
func DeriveStrategy(sessions []Session) AttendanceStrategy {
	var mandatory []string
	for _, s := range sessions {
		if s.Kind == SessionKindMilestone && s.Mandatory {
			mandatory = append(mandatory, s.ID)
		}
	}
	if len(mandatory) > 0 {
		return AttendanceStrategy{Kind: StrategyMilestoneGated, MandatorySessionIDs: mandatory}
	}
	if len(sessions) == 1 {
		return AttendanceStrategy{Kind: StrategyBinary}
	}
	uniform := true
	for i := 1; i < len(sessions); i++ {
		if sessions[i].Weight != sessions[0].Weight {
			uniform = false
			break
		}
	}
	if uniform {
		return AttendanceStrategy{Kind: StrategyUniformPercentage}
	}
	return AttendanceStrategy{Kind: StrategyWeightedPercentage}
}

// ComputeOutcome is a pure function of the session weights, the recorded
// attendance, and the pass threshold. Percentage is the attended share of
// total weight, rounded to two decimal places. Sessions added after some
// attendance was recorded enter the denominator from that point on; past
// records are untouched.
func ComputeOutcome(sessions []Session, records []AttendanceRecord, threshold float64) AttendanceOutcome {
	strategy := DeriveStrategy(sessions)

	attended := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Attended {
			attended[rec.SessionID] = true
		}
	}

	var totalWeight, attendedWeight float64
	for _, s := range sessions {
		totalWeight += s.Weight
		if attended[s.ID] {
			attendedWeight += s.Weight
		}
	}

	var percentage float64
	if totalWeight > 0 {
		percentage = math.Round(attendedWeight/totalWeight*100*100) / 100
	}

	passed := totalWeight > 0 && percentage >= threshold
	for _, id := range strategy.MandatorySessionIDs {
		if !attended[id] {
			passed = false
			break
		}
	}

	return AttendanceOutcome{Percentage: percentage, Passed: passed, Strategy: strategy.Kind}
}
