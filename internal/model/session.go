package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type CheckinSession struct {
	ID                 string          `db:"id" json:"id"`
	CoupleID           string          `db:"couple_id" json:"coupleId"`
	Status             SessionStatus   `db:"status" json:"status"`
	CurrentStep        Step            `db:"current_step" json:"currentStep"`
	TurnBasedMode      bool            `db:"turn_based_mode" json:"turnBasedMode"`
	CurrentTurnHolder  *string         `db:"current_turn_holder" json:"currentTurnHolder,omitempty"`
	TurnStartedAt      *time.Time      `db:"turn_started_at" json:"turnStartedAt,omitempty"`
	StepStartedAt      *time.Time      `db:"step_started_at" json:"stepStartedAt,omitempty"`
	StartedAt          *time.Time      `db:"started_at" json:"startedAt,omitempty"`
	PausedAt           *time.Time      `db:"paused_at" json:"pausedAt,omitempty"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	LastActivityAt     *time.Time      `db:"last_activity_at" json:"lastActivityAt,omitempty"`
	ActiveParticipants pq.StringArray  `db:"active_participants" json:"activeParticipants"`
	StepDurations      StepDurations   `db:"step_durations" json:"stepDurations"`
	StepCompletions    StepCompletions `db:"step_completions" json:"stepCompletions"`
	ElapsedSeconds     int             `db:"elapsed_seconds" json:"elapsedSeconds"`
	Summary            *string         `db:"summary" json:"summary,omitempty"`
	Metrics            *SessionMetrics `db:"metrics" json:"metrics,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

func (s *CheckinSession) HasActiveParticipant(participantID string) bool {
	for _, id := range s.ActiveParticipants {
		if id == participantID {
			return true
		}
	}
	return false
}

func (s *CheckinSession) AddActiveParticipant(participantID string) {
	if !s.HasActiveParticipant(participantID) {
		s.ActiveParticipants = append(s.ActiveParticipants, participantID)
	}
}

func (s *CheckinSession) RemoveActiveParticipant(participantID string) {
	remaining := s.ActiveParticipants[:0]
	for _, id := range s.ActiveParticipants {
		if id != participantID {
			remaining = append(remaining, id)
		}
	}
	s.ActiveParticipants = remaining
}

// HoldsTurn reports whether participantID currently holds the turn token.
func (s *CheckinSession) HoldsTurn(participantID string) bool {
	return s.CurrentTurnHolder != nil && *s.CurrentTurnHolder == participantID
}

type CreateSessionParams struct {
	CoupleID      string
	TurnBasedMode bool
}

// StepDurations maps a step to the seconds accumulated while it was current.
// Stored as jsonb.
type StepDurations map[Step]float64

func (d StepDurations) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *StepDurations) Scan(src any) error {
	return scanJSON(src, d)
}

type StepCompletionRecord struct {
	Step            Step      `json:"step"`
	CompletedAt     time.Time `json:"completedAt"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// StepCompletions is the ordered record of completed steps. Stored as jsonb.
type StepCompletions []StepCompletionRecord

func (c StepCompletions) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

func (c *StepCompletions) Scan(src any) error {
	return scanJSON(src, c)
}

// SessionMetrics is computed once at completion and never mutated afterwards.
type SessionMetrics struct {
	TotalDurationMinutes float64 `json:"totalDurationMinutes"`
	NotesCreated         int     `json:"notesCreated"`
	SharedNotesCreated   int     `json:"sharedNotesCreated"`
	StepsCompleted       int     `json:"stepsCompleted"`
	ParticipationBalance float64 `json:"participationBalance"`
}

func (m *SessionMetrics) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *SessionMetrics) Scan(src any) error {
	if src == nil {
		return nil
	}
	return scanJSON(src, m)
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
}
