package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func session(id string, kind SessionKind, weight float64, mandatory bool) Session {
	return Session{ID: id, EventID: "evt-1", Kind: kind, Weight: weight, Mandatory: mandatory}
}

func TestDeriveStrategy(t *testing.T) {
	cases := []struct {
		name     string
		sessions []Session
		want     StrategyKind
	}{
		{
			name:     "single session is binary",
			sessions: []Session{session("s1", SessionKindLecture, 1, false)},
			want:     StrategyBinary,
		},
		{
			name: "uniform weights",
			sessions: []Session{
				session("s1", SessionKindLecture, 1, false),
				session("s2", SessionKindWorkshop, 1, false),
			},
			want: StrategyUniformPercentage,
		},
		{
			name: "mixed weights",
			sessions: []Session{
				session("s1", SessionKindLecture, 1, false),
				session("s2", SessionKindExam, 3, false),
			},
			want: StrategyWeightedPercentage,
		},
		{
			name: "mandatory milestone gates",
			sessions: []Session{
				session("s1", SessionKindLecture, 1, false),
				session("s2", SessionKindMilestone, 1, true),
			},
			want: StrategyMilestoneGated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStrategy(tc.sessions).Kind)
		})
	}
}

func TestComputeOutcomeWeighted(t *testing.T) {
	sessions := []Session{
		session("s1", SessionKindLecture, 1, false),
		session("s2", SessionKindWorkshop, 1, false),
		session("s3", SessionKindExam, 2, false),
	}
	records := []AttendanceRecord{
		{RegistrationID: "r1", SessionID: "s1", Attended: true},
		{RegistrationID: "r1", SessionID: "s3", Attended: true},
	}

	outcome := ComputeOutcome(sessions, records, 60)
	assert.Equal(t, 75.0, outcome.Percentage)
	assert.True(t, outcome.Passed)
	assert.Equal(t, StrategyWeightedPercentage, outcome.Strategy)
}

func TestComputeOutcomeRounding(t *testing.T) {
	sessions := []Session{
		session("s1", SessionKindLecture, 1, false),
		session("s2", SessionKindLecture, 1, false),
		session("s3", SessionKindLecture, 1, false),
	}
	records := []AttendanceRecord{{RegistrationID: "r1", SessionID: "s1", Attended: true}}

	outcome := ComputeOutcome(sessions, records, 75)
	assert.Equal(t, 33.33, outcome.Percentage)
	assert.False(t, outcome.Passed)
}

func TestComputeOutcomeMilestoneGate(t *testing.T) {
	sessions := []Session{
		session("s1", SessionKindLecture, 1, false),
		session("s2", SessionKindLecture, 1, false),
		session("s3", SessionKindMilestone, 1, true),
	}

	// Percentage clears the threshold but the milestone was missed.
	records := []AttendanceRecord{
		{RegistrationID: "r1", SessionID: "s1", Attended: true},
		{RegistrationID: "r1", SessionID: "s2", Attended: true},
	}
	outcome := ComputeOutcome(sessions, records, 50)
	assert.Equal(t, 66.67, outcome.Percentage)
	assert.False(t, outcome.Passed)

	records = append(records, AttendanceRecord{RegistrationID: "r1", SessionID: "s3", Attended: true})
	outcome = ComputeOutcome(sessions, records, 50)
	assert.True(t, outcome.Passed)
}

func TestComputeOutcomeBinary(t *testing.T) {
	sessions := []Session{session("s1", SessionKindWorkshop, 2, false)}

	outcome := ComputeOutcome(sessions, nil, 75)
	assert.Equal(t, 0.0, outcome.Percentage)
	assert.False(t, outcome.Passed)

	outcome = ComputeOutcome(sessions, []AttendanceRecord{{SessionID: "s1", Attended: true}}, 75)
	assert.Equal(t, 100.0, outcome.Percentage)
	assert.True(t, outcome.Passed)
}

func TestComputeOutcomeDeterministic(t *testing.T) {
	sessions := []Session{
		session("s1", SessionKindLecture, 1, false),
		session("s2", SessionKindExam, 2, false),
	}
	records := []AttendanceRecord{{SessionID: "s2", Attended: true}}

	first := ComputeOutcome(sessions, records, 60)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeOutcome(sessions, records, 60))
	}
}

func TestComputeOutcomeLaterSessionsEnlargeDenominator(t *testing.T) {
	sessions := []Session{
		session("s1", SessionKindLecture, 1, false),
		session("s2", SessionKindLecture, 1, false),
	}
	records := []AttendanceRecord{
		{SessionID: "s1", Attended: true},
		{SessionID: "s2", Attended: true},
	}
	assert.Equal(t, 100.0, ComputeOutcome(sessions, records, 75).Percentage)

	// A session added afterwards dilutes the percentage without touching
	// the existing records.
	sessions = append(sessions, session("s3", SessionKindLecture, 1, false))
	assert.Equal(t, 66.67, ComputeOutcome(sessions, records, 75).Percentage)
}

func TestComputeOutcomeNoSessions(t *testing.T) {
	outcome := ComputeOutcome(nil, nil, 75)
	assert.Equal(t, 0.0, outcome.Percentage)
	assert.False(t, outcome.Passed)
}
