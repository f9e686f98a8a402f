package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tandem-app/checkin-server-go/internal/model"
)

func TestCalculateMetrics(t *testing.T) {
	started := baseTime.Add(-45 * time.Minute)

	t.Run("no notes reads as neutral balance", func(t *testing.T) {
		session := testSession(model.SessionStatusInProgress, false)
		session.StartedAt = &started

		metrics := CalculateMetrics(session, nil, partnerA, baseTime)
		assert.InDelta(t, 45.0, metrics.TotalDurationMinutes, 0.001)
		assert.Equal(t, 0, metrics.NotesCreated)
		assert.Equal(t, 0, metrics.SharedNotesCreated)
		assert.InDelta(t, 0.5, metrics.ParticipationBalance, 0.001)
	})

	t.Run("counts notes and authorship", func(t *testing.T) {
		session := testSession(model.SessionStatusInProgress, false)
		session.StartedAt = &started
		session.StepCompletions = model.StepCompletions{
			{Step: model.StepWelcome},
			{Step: model.StepReflection},
		}
		notes := []model.Note{
			{AuthorID: partnerA, Privacy: model.NotePrivacyShared},
			{AuthorID: partnerA, Privacy: model.NotePrivacyPrivate},
			{AuthorID: partnerB, Privacy: model.NotePrivacyShared},
		}

		metrics := CalculateMetrics(session, notes, partnerA, baseTime)
		assert.Equal(t, 3, metrics.NotesCreated)
		assert.Equal(t, 2, metrics.SharedNotesCreated)
		assert.Equal(t, 2, metrics.StepsCompleted)
		assert.InDelta(t, 2.0/3.0, metrics.ParticipationBalance, 0.001)
	})

	t.Run("balance is the caller's fraction", func(t *testing.T) {
		session := testSession(model.SessionStatusInProgress, false)
		notes := []model.Note{
			{AuthorID: partnerA, Privacy: model.NotePrivacyShared},
			{AuthorID: partnerB, Privacy: model.NotePrivacyShared},
			{AuthorID: partnerB, Privacy: model.NotePrivacyShared},
		}

		forA := CalculateMetrics(session, notes, partnerA, baseTime)
		forB := CalculateMetrics(session, notes, partnerB, baseTime)
		assert.InDelta(t, 1.0/3.0, forA.ParticipationBalance, 0.001)
		assert.InDelta(t, 2.0/3.0, forB.ParticipationBalance, 0.001)
	})

	t.Run("balance stays within bounds", func(t *testing.T) {
		session := testSession(model.SessionStatusInProgress, false)
		notes := []model.Note{
			{AuthorID: partnerA, Privacy: model.NotePrivacyShared},
			{AuthorID: partnerA, Privacy: model.NotePrivacyShared},
		}

		metrics := CalculateMetrics(session, notes, partnerA, baseTime)
		assert.InDelta(t, 1.0, metrics.ParticipationBalance, 0.001)
		metrics = CalculateMetrics(session, notes, partnerB, baseTime)
		assert.InDelta(t, 0.0, metrics.ParticipationBalance, 0.001)
	})

	t.Run("never-started session has zero duration", func(t *testing.T) {
		session := testSession(model.SessionStatusNotStarted, false)

		metrics := CalculateMetrics(session, nil, partnerA, baseTime)
		assert.Zero(t, metrics.TotalDurationMinutes)
	})
}
