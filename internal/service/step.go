package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

// StepService runs the session lifecycle and validated step transitions.
// Steps are explicit jumps within the fixed step set; back-navigation is
// allowed. Per-step wall time accumulates into stepDurations as steps end.
type StepService struct {
	store       store.Store
	broadcaster Broadcaster
	now         func() time.Time
}

func NewStepService(st store.Store, broadcaster Broadcaster) *StepService {
	return &StepService{
		store:       st,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start moves a fresh session into progress and begins timing the first step.
func (s *StepService) Start(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	now := s.now()

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if sess.Status != model.SessionStatusNotStarted {
			return apperrors.InvalidState("Session has already started")
		}

		sess.Status = model.SessionStatusInProgress
		sess.StartedAt = &now
		sess.StepStartedAt = &now
		sess.LastActivityAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Msg("session started")

	publish(ctx, s.broadcaster, sessionID, event.SessionStarted{
		By:        participantID,
		StartedAt: now,
	})

	return session, nil
}

// AdvanceStep jumps to newStep, folding the outgoing step's elapsed time into
// stepDurations.
func (s *StepService) AdvanceStep(ctx context.Context, sessionID, participantID string, newStep model.Step) (*model.CheckinSession, error) {
	if !newStep.Valid() {
		return nil, apperrors.InvalidInput("step", "unknown step "+string(newStep))
	}

	now := s.now()

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if sess.Status != model.SessionStatusInProgress {
			return apperrors.InvalidState("Session is not in progress")
		}
		if !CanModify(sess, participantID) {
			return apperrors.TurnDenied(holderOrEmpty(sess))
		}

		if sess.StepStartedAt != nil {
			if sess.StepDurations == nil {
				sess.StepDurations = model.StepDurations{}
			}
			sess.StepDurations[sess.CurrentStep] += now.Sub(*sess.StepStartedAt).Seconds()
		}

		sess.CurrentStep = newStep
		sess.StepStartedAt = &now
		sess.LastActivityAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Str("step", string(newStep)).
		Msg("step advanced")

	publish(ctx, s.broadcaster, sessionID, event.StepChanged{
		NewStep: newStep,
		By:      participantID,
	})

	return session, nil
}

// CompleteStep records a completion entry for the current step without
// leaving it.
func (s *StepService) CompleteStep(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	now := s.now()
	var completion model.StepCompletionRecord

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if sess.Status != model.SessionStatusInProgress {
			return apperrors.InvalidState("Session is not in progress")
		}
		if !CanModify(sess, participantID) {
			return apperrors.TurnDenied(holderOrEmpty(sess))
		}

		duration := 0.0
		if sess.StepStartedAt != nil {
			duration = now.Sub(*sess.StepStartedAt).Seconds()
		}

		completion = model.StepCompletionRecord{
			Step:            sess.CurrentStep,
			CompletedAt:     now,
			DurationSeconds: duration,
		}
		sess.StepCompletions = append(sess.StepCompletions, completion)
		sess.LastActivityAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.broadcaster, sessionID, event.StepCompleted{
		Step:            completion.Step,
		DurationSeconds: completion.DurationSeconds,
		CompletedAt:     completion.CompletedAt,
	})

	return session, nil
}

// Pause suspends an in-progress session. elapsedSeconds is the client's own
// displayed counter, kept for display after a resume; server clocks stay
// authoritative for all duration math.
func (s *StepService) Pause(ctx context.Context, sessionID, participantID string, elapsedSeconds int) (*model.CheckinSession, error) {
	now := s.now()

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if sess.Status != model.SessionStatusInProgress {
			return apperrors.InvalidState("Session is not in progress")
		}
		if !CanModify(sess, participantID) {
			return apperrors.TurnDenied(holderOrEmpty(sess))
		}

		sess.Status = model.SessionStatusPaused
		sess.PausedAt = &now
		sess.LastActivityAt = &now
		if elapsedSeconds > 0 {
			sess.ElapsedSeconds = elapsedSeconds
		}
		// The turn token only exists while in progress.
		sess.CurrentTurnHolder = nil
		sess.TurnStartedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Msg("session paused")

	publish(ctx, s.broadcaster, sessionID, event.SessionPaused{
		By:       participantID,
		PausedAt: now,
	})

	return session, nil
}

// Resume returns a paused session to progress. Resume is always explicit;
// the step timer restarts so paused wall time never counts into durations.
func (s *StepService) Resume(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	now := s.now()

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if sess.Status != model.SessionStatusPaused {
			return apperrors.InvalidState("Session is not paused")
		}
		if !CanModify(sess, participantID) {
			return apperrors.TurnDenied(holderOrEmpty(sess))
		}

		sess.Status = model.SessionStatusInProgress
		sess.PausedAt = nil
		sess.StepStartedAt = &now
		sess.LastActivityAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Msg("session resumed")

	publish(ctx, s.broadcaster, sessionID, event.SessionResumed{By: participantID})

	return session, nil
}

// Complete terminates the session and computes its metrics. Completion is
// only legal from in_progress: a paused session must be resumed first.
func (s *StepService) Complete(ctx context.Context, sessionID, participantID, summary string) (*model.CheckinSession, error) {
	now := s.now()
	var metrics model.SessionMetrics

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if sess.Status != model.SessionStatusInProgress {
			return apperrors.InvalidState("Session must be in progress to complete")
		}
		if !CanModify(sess, participantID) {
			return apperrors.TurnDenied(holderOrEmpty(sess))
		}

		// Listed under the session's write lock: note creation serializes on
		// the same lock, so the metrics see every note.
		notes, err := s.store.ListNotes(ctx, sessionID)
		if err != nil {
			return err
		}

		metrics = CalculateMetrics(sess, notes, participantID, now)

		sess.Status = model.SessionStatusCompleted
		sess.CompletedAt = &now
		sess.LastActivityAt = &now
		sess.CurrentTurnHolder = nil
		sess.TurnStartedAt = nil
		sess.Metrics = &metrics
		if summary != "" {
			sess.Summary = &summary
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Float64("totalDurationMinutes", metrics.TotalDurationMinutes).
		Int("notesCreated", metrics.NotesCreated).
		Msg("session completed")

	publish(ctx, s.broadcaster, sessionID, event.SessionCompleted{
		By:      participantID,
		Metrics: metrics,
	})

	return session, nil
}

func holderOrEmpty(session *model.CheckinSession) string {
	if session.CurrentTurnHolder != nil {
		return *session.CurrentTurnHolder
	}
	return ""
}
