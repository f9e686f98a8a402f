package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/repository"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

// PresenceService tracks which participants are connected to a session. It is
// also the membership gatekeeper: every subscription and command passes
// through Authorize before touching session state.
type PresenceService struct {
	store       store.Store
	couples     repository.CoupleRepository
	broadcaster Broadcaster
	now         func() time.Time
}

func NewPresenceService(st store.Store, couples repository.CoupleRepository, broadcaster Broadcaster) *PresenceService {
	return &PresenceService{
		store:       st,
		couples:     couples,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Authorize loads the session and verifies that participantID belongs to its
// couple. No state is mutated; an outsider is refused before anything else
// happens.
func (s *PresenceService) Authorize(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	couple, err := s.couples.FindByID(ctx, session.CoupleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if couple == nil || !couple.HasPartner(participantID) {
		return nil, apperrors.Unauthorized("Participant does not belong to this session's couple")
	}

	return session, nil
}

// Join idempotently adds the participant to the session's active set.
func (s *PresenceService) Join(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	if _, err := s.Authorize(ctx, sessionID, participantID); err != nil {
		return nil, err
	}

	now := s.now()
	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		sess.AddActiveParticipant(participantID)
		sess.LastActivityAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Int("activeParticipants", len(session.ActiveParticipants)).
		Msg("participant joined session")

	publish(ctx, s.broadcaster, sessionID, event.ParticipantJoined{
		ParticipantID: participantID,
		JoinedAt:      now,
	})

	return session, nil
}

// Leave removes the participant. When the last participant of an in-progress
// session disconnects the session auto-pauses; rejoining never auto-resumes.
// Note locks held by the departing participant are left alone, the lock TTL
// clears them.
func (s *PresenceService) Leave(ctx context.Context, sessionID, participantID string) error {
	now := s.now()
	autoPaused := false

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		sess.RemoveActiveParticipant(participantID)

		if len(sess.ActiveParticipants) == 0 && sess.Status == model.SessionStatusInProgress {
			sess.Status = model.SessionStatusPaused
			sess.PausedAt = &now
			sess.CurrentTurnHolder = nil
			sess.TurnStartedAt = nil
			autoPaused = true
		}
		return nil
	})
	if err != nil {
		// Leaving a completed session has nothing left to track.
		if apperrors.GetCode(err) == apperrors.ErrCodeSessionClosed {
			log.Debug().
				Str("sessionId", sessionID).
				Str("participantId", participantID).
				Msg("participant left completed session")
			return nil
		}
		return err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Bool("autoPaused", autoPaused).
		Int("activeParticipants", len(session.ActiveParticipants)).
		Msg("participant left session")

	publish(ctx, s.broadcaster, sessionID, event.ParticipantLeft{
		ParticipantID: participantID,
		LeftAt:        now,
	})

	if autoPaused {
		publish(ctx, s.broadcaster, sessionID, event.SessionPaused{
			By:       participantID,
			PausedAt: now,
		})
	}

	return nil
}

// Typing relays a transient typing signal. Nothing is stored.
func (s *PresenceService) Typing(ctx context.Context, sessionID, participantID, typingContext string, isTyping bool) {
	publish(ctx, s.broadcaster, sessionID, event.TypingIndicator{
		ParticipantID: participantID,
		Context:       typingContext,
		IsTyping:      isTyping,
	})
}

// React relays a transient emoji reaction. Nothing is stored.
func (s *PresenceService) React(ctx context.Context, sessionID, participantID, emoji string) {
	publish(ctx, s.broadcaster, sessionID, event.ReactionReceived{
		Emoji: emoji,
		By:    participantID,
	})
}
