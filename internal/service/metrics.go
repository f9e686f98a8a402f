package service

import (
	"time"

	"github.com/tandem-app/checkin-server-go/internal/model"
)

// CalculateMetrics derives completion statistics from a session snapshot and
// its notes. It runs once, when the session completes; the result is stored
// on the session and never recomputed. participationBalance is the fraction
// of notes authored by participantID, 0.5 when there are no notes so "no
// data" reads as neutral instead of dividing by zero.
func CalculateMetrics(session *model.CheckinSession, notes []model.Note, participantID string, now time.Time) model.SessionMetrics {
	metrics := model.SessionMetrics{
		StepsCompleted: len(session.StepCompletions),
	}

	if session.StartedAt != nil {
		metrics.TotalDurationMinutes = now.Sub(*session.StartedAt).Minutes()
	}

	authored := 0
	for _, note := range notes {
		metrics.NotesCreated++
		if note.Privacy == model.NotePrivacyShared {
			metrics.SharedNotesCreated++
		}
		if note.AuthorID == participantID {
			authored++
		}
	}

	if metrics.NotesCreated == 0 {
		metrics.ParticipationBalance = 0.5
	} else {
		metrics.ParticipationBalance = float64(authored) / float64(metrics.NotesCreated)
	}

	return metrics
}
